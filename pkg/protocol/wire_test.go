package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestStatsRoundTripKeepsNestedNodes(t *testing.T) {
	in := &AdminStatsResponse{
		TotalUsers:          4,
		TotalFiles:          2,
		TotalNetworkStorage: 3 << 30,
		UsedNetworkStorage:  600 << 20,
		Nodes: []*NodeDetail{
			{NodeId: "1", Status: "Online", Ip: "127.0.0.1", Port: 7001, TotalSpace: 1 << 30, UsedSpace: 300 << 20, ChunkCount: 1, Pid: 4242},
			{NodeId: "2", Status: "Offline", TotalSpace: 1 << 30},
		},
	}

	data, err := Codec{}.Marshal(in)
	require.NoError(t, err)

	out := new(AdminStatsResponse)
	require.NoError(t, Codec{}.Unmarshal(data, out))
	assert.Equal(t, in, out)
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	known, err := (&Response{Result: "Started"}).Marshal()
	require.NoError(t, err)

	var data []byte
	data = protowire.AppendTag(data, 9, protowire.VarintType)
	data = protowire.AppendVarint(data, 77)
	data = append(data, known...)
	data = protowire.AppendTag(data, 10, protowire.BytesType)
	data = protowire.AppendString(data, "future")

	out := new(Response)
	require.NoError(t, out.Unmarshal(data))
	assert.Equal(t, "Started", out.Result)
}

func TestChunkRequestCopiesPayload(t *testing.T) {
	in := &StoreProjectDocumentRequest{Token: "t", ProjectId: "new", Filename: "a.pdf", Data: []byte("payload"), ProposerWallet: "0xabc", Offset: 2097152}
	data, err := in.Marshal()
	require.NoError(t, err)

	out := new(StoreProjectDocumentRequest)
	require.NoError(t, out.Unmarshal(data))
	assert.Equal(t, in, out)

	for i := range data {
		data[i] = 0
	}
	assert.Equal(t, []byte("payload"), out.Data)
}

func TestTruncatedInputFails(t *testing.T) {
	data, err := (&GetProjectDocumentResponse{Data: []byte("abcdef"), Filename: "x.png"}).Marshal()
	require.NoError(t, err)

	assert.Error(t, new(GetProjectDocumentResponse).Unmarshal(data[:len(data)-2]))
}

func TestCodecRejectsForeignTypes(t *testing.T) {
	_, err := Codec{}.Marshal("not a message")
	assert.Error(t, err)
	assert.Equal(t, "proto", Codec{}.Name())
}
