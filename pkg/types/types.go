package types

import (
	"time"
)

type NodeID string
type ContentID string
type ProjectID string

type NodeState string

const (
	NodeOnline     NodeState = "Online"
	NodeOffline    NodeState = "Offline"
	NodeProcessing NodeState = "Processing"
)

type ProjectStatus string

const (
	StatusProposed  ProjectStatus = "proposed"
	StatusActive    ProjectStatus = "active"
	StatusFunded    ProjectStatus = "funded"
	StatusRejected  ProjectStatus = "rejected"
	StatusCompleted ProjectStatus = "completed"
)

// Valid reports whether s is one of the known project states.
func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusProposed, StatusActive, StatusFunded, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// DocumentCommit is what the cluster returns once a whole upload stream is stored.
type DocumentCommit struct {
	ContentID ContentID `json:"contentId"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
}

type DocumentRef struct {
	ContentID  ContentID `json:"contentId"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Milestone is a funding checkpoint on a project. CompletedAt is unset
// until the milestone is completed.
type Milestone struct {
	Title         string     `json:"title"`
	TargetFunding float64    `json:"targetFunding"`
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// ProjectRecord is serialized with the dashboard's field names; the record id
// travels as "_id".
type ProjectRecord struct {
	ID                ProjectID     `json:"_id"`
	BlockchainID      int64         `json:"blockchainId"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	ContentID         ContentID     `json:"ipfsHash"`
	FundingGoal       float64       `json:"fundingGoal"`
	CurrentFunding    float64       `json:"currentFunding"`
	VotesFor          int64         `json:"votesFor"`
	VotesAgainst      int64         `json:"votesAgainst"`
	Deadline          int64         `json:"deadline"`
	Proposer          string        `json:"proposer"`
	Status            ProjectStatus `json:"status"`
	DeletionRequested bool          `json:"deletionRequested"`
	Documents         []DocumentRef `json:"documents"`
	Milestones        []Milestone   `json:"milestones"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// NodeRecord is a single poll's view of a storage node. It is never cached.
type NodeRecord struct {
	ID         NodeID    `json:"node_id"`
	State      NodeState `json:"status"`
	IP         string    `json:"ip"`
	Port       int32     `json:"port"`
	PID        int32     `json:"pid"`
	ChunkCount int64     `json:"chunk_count"`
	UsedSpace  int64     `json:"used_space"`
	TotalSpace int64     `json:"total_space"`
}

type ChunkDescriptor struct {
	ChunkID  string `json:"chunk_id"`
	Filename string `json:"filename"`
	Index    int64  `json:"chunk_index"`
	Size     int64  `json:"size"`
}

type FleetStats struct {
	TotalUsers     int64        `json:"total_users"`
	TotalFiles     int64        `json:"total_files"`
	TotalStorage   int64        `json:"total_network_storage"`
	UsedStorage    int64        `json:"used_network_storage"`
	OnlineNodes    int          `json:"online_nodes"`
	DuplicateNodes int          `json:"duplicate_entries,omitempty"`
	Nodes          []NodeRecord `json:"nodes"`
}
