package postgresadapter

import (
	"encoding/json"
	"time"

	"coolrouter/contexts/oracle-routing/request-broker/domain/entities"
)

type callbackTargetRow struct {
	Identity string `json:"identity"`
	Writable bool   `json:"writable"`
}

type voteRow struct {
	OracleID   string `json:"oracle_id"`
	ResultHash string `json:"result_hash"`
}

type requestModel struct {
	ID                string    `gorm:"column:id;primaryKey"`
	RequestingParty   string    `gorm:"column:requesting_party"`
	Provider          string    `gorm:"column:provider"`
	ModelID           string    `gorm:"column:model_id"`
	CallbackTargets   []byte    `gorm:"column:callback_targets;type:jsonb"`
	Status            string    `gorm:"column:status"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	MinVotes          int       `gorm:"column:min_votes"`
	ApprovalThreshold int       `gorm:"column:approval_threshold"`
	Votes             []byte    `gorm:"column:votes;type:jsonb"`
	TotalVotesCast    int       `gorm:"column:total_votes_cast"`
	WinningHash       *string   `gorm:"column:winning_hash"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (requestModel) TableName() string {
	return "llm_requests"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload;type:jsonb"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "request_broker_outbox"
}

// Models lists the persisted schemas for startup migration.
func Models() []any {
	return []any{&requestModel{}, &outboxModel{}}
}

func requestModelFromEntity(request entities.Request, updatedAt time.Time) (requestModel, error) {
	targets := make([]callbackTargetRow, 0, len(request.CallbackTargets))
	for _, target := range request.CallbackTargets {
		targets = append(targets, callbackTargetRow{Identity: target.Identity, Writable: target.Writable})
	}
	targetsJSON, err := json.Marshal(targets)
	if err != nil {
		return requestModel{}, err
	}

	votes := make([]voteRow, 0, len(request.Votes))
	for _, vote := range request.Votes {
		votes = append(votes, voteRow{OracleID: vote.OracleID, ResultHash: vote.ResultHash})
	}
	votesJSON, err := json.Marshal(votes)
	if err != nil {
		return requestModel{}, err
	}

	var winning *string
	if request.WinningHash != "" {
		value := request.WinningHash
		winning = &value
	}
	return requestModel{
		ID:                request.ID,
		RequestingParty:   request.RequestingParty,
		Provider:          request.Provider,
		ModelID:           request.ModelID,
		CallbackTargets:   targetsJSON,
		Status:            string(request.Status),
		CreatedAt:         request.CreatedAt,
		MinVotes:          request.MinVotes,
		ApprovalThreshold: request.ApprovalThreshold,
		Votes:             votesJSON,
		TotalVotesCast:    request.TotalVotesCast(),
		WinningHash:       winning,
		UpdatedAt:         updatedAt,
	}, nil
}

func (m requestModel) toEntity() (entities.Request, error) {
	var targetRows []callbackTargetRow
	if len(m.CallbackTargets) > 0 {
		if err := json.Unmarshal(m.CallbackTargets, &targetRows); err != nil {
			return entities.Request{}, err
		}
	}
	targets := make([]entities.CallbackTarget, 0, len(targetRows))
	for _, row := range targetRows {
		targets = append(targets, entities.CallbackTarget{Identity: row.Identity, Writable: row.Writable})
	}

	var voteRows []voteRow
	if len(m.Votes) > 0 {
		if err := json.Unmarshal(m.Votes, &voteRows); err != nil {
			return entities.Request{}, err
		}
	}
	votes := make([]entities.Vote, 0, len(voteRows))
	for _, row := range voteRows {
		votes = append(votes, entities.Vote{OracleID: row.OracleID, ResultHash: row.ResultHash})
	}

	winning := ""
	if m.WinningHash != nil {
		winning = *m.WinningHash
	}
	return entities.Request{
		ID:                m.ID,
		RequestingParty:   m.RequestingParty,
		Provider:          m.Provider,
		ModelID:           m.ModelID,
		CallbackTargets:   targets,
		Status:            entities.RequestStatus(m.Status),
		CreatedAt:         m.CreatedAt,
		MinVotes:          m.MinVotes,
		ApprovalThreshold: m.ApprovalThreshold,
		Votes:             votes,
		WinningHash:       winning,
	}, nil
}
