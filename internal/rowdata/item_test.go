package rowdata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByteSizeGrowsWithRowWidth(t *testing.T) {
	small := NewRowItem(RowData{
		Op:    OpInsert,
		After: map[string]ColValue{"id": {Kind: KindInt, Int: 1}},
	})
	large := NewRowItem(RowData{
		Op: OpInsert,
		After: map[string]ColValue{
			"id":   {Kind: KindInt, Int: 1},
			"name": {Kind: KindString, Text: "a fairly long string value to pad the row width"},
		},
	})
	require.Greater(t, large.ByteSize(), small.ByteSize())
}

func TestByteSizeHeartbeatAndMarkerAreCheap(t *testing.T) {
	hb := NewHeartbeatItem()
	mk := NewMarkerItem("switchover-1")
	row := NewRowItem(RowData{Op: OpInsert, After: map[string]ColValue{"id": {Kind: KindInt, Int: 1}}})

	require.Less(t, hb.ByteSize(), row.ByteSize())
	require.Equal(t, hb.ByteSize(), mk.ByteSize())
}

func TestDdlItemByteSizeReflectsQueryLength(t *testing.T) {
	short := NewDdlItem(DdlData{Query: "CREATE TABLE a (id int)"})
	long := NewDdlItem(DdlData{Query: "CREATE TABLE a (id int, name varchar(255), created_at timestamp)"})
	require.Greater(t, long.ByteSize(), short.ByteSize())
}
