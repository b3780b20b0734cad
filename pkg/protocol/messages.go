package protocol

import (
	"google.golang.org/protobuf/encoding/protowire"
)

type StoreProjectDocumentRequest struct {
	Token          string
	ProjectId      string
	Filename       string
	Data           []byte
	ProposerWallet string
	Offset         int64
}

func (m *StoreProjectDocumentRequest) Marshal() ([]byte, error) {
	b := make([]byte, 0, len(m.Data)+len(m.Token)+len(m.Filename)+64)
	b = appendString(b, 1, m.Token)
	b = appendString(b, 2, m.ProjectId)
	b = appendString(b, 3, m.Filename)
	b = appendBytes(b, 4, m.Data)
	b = appendString(b, 5, m.ProposerWallet)
	b = appendInt(b, 6, m.Offset)
	return b, nil
}

func (m *StoreProjectDocumentRequest) Unmarshal(data []byte) error {
	*m = StoreProjectDocumentRequest{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Token)
		case 2:
			return consumeString(typ, b, &m.ProjectId)
		case 3:
			return consumeString(typ, b, &m.Filename)
		case 4:
			return consumeBytes(typ, b, &m.Data)
		case 5:
			return consumeString(typ, b, &m.ProposerWallet)
		case 6:
			return consumeInt64(typ, b, &m.Offset)
		}
		return 0
	})
}

type StoreProjectDocumentResponse struct {
	IpfsHash string
	Result   string
	Filename string
	Size     int64
}

func (m *StoreProjectDocumentResponse) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.IpfsHash)
	b = appendString(b, 2, m.Result)
	b = appendString(b, 3, m.Filename)
	b = appendInt(b, 4, m.Size)
	return b, nil
}

func (m *StoreProjectDocumentResponse) Unmarshal(data []byte) error {
	*m = StoreProjectDocumentResponse{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.IpfsHash)
		case 2:
			return consumeString(typ, b, &m.Result)
		case 3:
			return consumeString(typ, b, &m.Filename)
		case 4:
			return consumeInt64(typ, b, &m.Size)
		}
		return 0
	})
}

type GetProjectDocumentRequest struct {
	Token    string
	IpfsHash string
}

func (m *GetProjectDocumentRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Token)
	b = appendString(b, 2, m.IpfsHash)
	return b, nil
}

func (m *GetProjectDocumentRequest) Unmarshal(data []byte) error {
	*m = GetProjectDocumentRequest{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Token)
		case 2:
			return consumeString(typ, b, &m.IpfsHash)
		}
		return 0
	})
}

type GetProjectDocumentResponse struct {
	Data     []byte
	Filename string
}

func (m *GetProjectDocumentResponse) Marshal() ([]byte, error) {
	b := make([]byte, 0, len(m.Data)+len(m.Filename)+16)
	b = appendBytes(b, 1, m.Data)
	b = appendString(b, 2, m.Filename)
	return b, nil
}

func (m *GetProjectDocumentResponse) Unmarshal(data []byte) error {
	*m = GetProjectDocumentResponse{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeBytes(typ, b, &m.Data)
		case 2:
			return consumeString(typ, b, &m.Filename)
		}
		return 0
	})
}

type AdminRequest struct {
	AdminToken string
}

func (m *AdminRequest) Marshal() ([]byte, error) {
	return appendString(nil, 1, m.AdminToken), nil
}

func (m *AdminRequest) Unmarshal(data []byte) error {
	*m = AdminRequest{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return consumeString(typ, b, &m.AdminToken)
		}
		return 0
	})
}

type NodeDetail struct {
	NodeId     string
	Status     string
	Ip         string
	Port       int32
	TotalSpace int64
	UsedSpace  int64
	ChunkCount int64
	Pid        int32
}

func (m *NodeDetail) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.NodeId)
	b = appendString(b, 2, m.Status)
	b = appendString(b, 3, m.Ip)
	b = appendInt(b, 4, int64(m.Port))
	b = appendInt(b, 5, m.TotalSpace)
	b = appendInt(b, 6, m.UsedSpace)
	b = appendInt(b, 7, m.ChunkCount)
	b = appendInt(b, 8, int64(m.Pid))
	return b, nil
}

func (m *NodeDetail) Unmarshal(data []byte) error {
	*m = NodeDetail{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.NodeId)
		case 2:
			return consumeString(typ, b, &m.Status)
		case 3:
			return consumeString(typ, b, &m.Ip)
		case 4:
			return consumeInt32(typ, b, &m.Port)
		case 5:
			return consumeInt64(typ, b, &m.TotalSpace)
		case 6:
			return consumeInt64(typ, b, &m.UsedSpace)
		case 7:
			return consumeInt64(typ, b, &m.ChunkCount)
		case 8:
			return consumeInt32(typ, b, &m.Pid)
		}
		return 0
	})
}

type AdminStatsResponse struct {
	TotalUsers          int64
	TotalFiles          int64
	TotalNetworkStorage int64
	UsedNetworkStorage  int64
	Nodes               []*NodeDetail
}

func (m *AdminStatsResponse) Marshal() ([]byte, error) {
	var b []byte
	b = appendInt(b, 1, m.TotalUsers)
	b = appendInt(b, 2, m.TotalFiles)
	b = appendInt(b, 3, m.TotalNetworkStorage)
	b = appendInt(b, 4, m.UsedNetworkStorage)
	for _, n := range m.Nodes {
		var err error
		if b, err = appendMessage(b, 5, n); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (m *AdminStatsResponse) Unmarshal(data []byte) error {
	*m = AdminStatsResponse{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeInt64(typ, b, &m.TotalUsers)
		case 2:
			return consumeInt64(typ, b, &m.TotalFiles)
		case 3:
			return consumeInt64(typ, b, &m.TotalNetworkStorage)
		case 4:
			return consumeInt64(typ, b, &m.UsedNetworkStorage)
		case 5:
			node := &NodeDetail{}
			n := consumeMessage(typ, b, node)
			if n > 0 {
				m.Nodes = append(m.Nodes, node)
			}
			return n
		}
		return 0
	})
}

type ToggleNodeRequest struct {
	NodeId string
	Action string
}

func (m *ToggleNodeRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.NodeId)
	b = appendString(b, 2, m.Action)
	return b, nil
}

func (m *ToggleNodeRequest) Unmarshal(data []byte) error {
	*m = ToggleNodeRequest{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.NodeId)
		case 2:
			return consumeString(typ, b, &m.Action)
		}
		return 0
	})
}

type NodeRequest struct {
	NodeId string
}

func (m *NodeRequest) Marshal() ([]byte, error) {
	return appendString(nil, 1, m.NodeId), nil
}

func (m *NodeRequest) Unmarshal(data []byte) error {
	*m = NodeRequest{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return consumeString(typ, b, &m.NodeId)
		}
		return 0
	})
}

type Response struct {
	Result string
}

func (m *Response) Marshal() ([]byte, error) {
	return appendString(nil, 1, m.Result), nil
}

func (m *Response) Unmarshal(data []byte) error {
	*m = Response{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return consumeString(typ, b, &m.Result)
		}
		return 0
	})
}

type FileChunkDetail struct {
	Filename   string
	ChunkId    string
	ChunkIndex int64
	Size       int64
}

func (m *FileChunkDetail) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Filename)
	b = appendString(b, 2, m.ChunkId)
	b = appendInt(b, 3, m.ChunkIndex)
	b = appendInt(b, 4, m.Size)
	return b, nil
}

func (m *FileChunkDetail) Unmarshal(data []byte) error {
	*m = FileChunkDetail{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Filename)
		case 2:
			return consumeString(typ, b, &m.ChunkId)
		case 3:
			return consumeInt64(typ, b, &m.ChunkIndex)
		case 4:
			return consumeInt64(typ, b, &m.Size)
		}
		return 0
	})
}

type NodeFilesResponse struct {
	NodeId string
	Chunks []*FileChunkDetail
}

func (m *NodeFilesResponse) Marshal() ([]byte, error) {
	b := appendString(nil, 1, m.NodeId)
	for _, c := range m.Chunks {
		var err error
		if b, err = appendMessage(b, 2, c); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (m *NodeFilesResponse) Unmarshal(data []byte) error {
	*m = NodeFilesResponse{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.NodeId)
		case 2:
			chunk := &FileChunkDetail{}
			n := consumeMessage(typ, b, chunk)
			if n > 0 {
				m.Chunks = append(m.Chunks, chunk)
			}
			return n
		}
		return 0
	})
}
