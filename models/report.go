package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

type ReportStatus string

const (
	StatusOpen       ReportStatus = "Open"
	StatusInProgress ReportStatus = "In-Progress"
	StatusDone       ReportStatus = "Done"
	StatusClosed     ReportStatus = "Closed"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusDone, StatusClosed:
		return true
	}
	return false
}

type Location struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
	Address   string  `bson:"address,omitempty" json:"address,omitempty"`
}

type Report struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AgentID            primitive.ObjectID `bson:"agent_id" json:"agentId"`
	ProjectName        string             `bson:"project_name" json:"projectName"`
	ProjectNumber      string             `bson:"project_number" json:"projectNumber"`
	Customer           string             `bson:"customer" json:"customer"`
	WorkDone           []string           `bson:"work_done" json:"workDone"`
	Priority           Priority           `bson:"priority" json:"priority"`
	Status             ReportStatus       `bson:"status" json:"status"`
	CreatedBy          string             `bson:"created_by" json:"createdBy"`
	NextActionInternal string             `bson:"next_action_internal,omitempty" json:"nextActionInternal,omitempty"`
	NextActionCustomer string             `bson:"next_action_customer,omitempty" json:"nextActionCustomer,omitempty"`
	Location           *Location          `bson:"location,omitempty" json:"location,omitempty"`
	CreatedAt          time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updatedAt"`
}

// ReportView is a report together with its author.
type ReportView struct {
	Report
	Agent *UserSummary `json:"agent,omitempty"`
}

type StoredImage struct {
	Key         string `bson:"key" json:"key"`
	PreviewKey  string `bson:"preview_key" json:"previewKey"`
	ContentType string `bson:"content_type" json:"contentType"`
	Size        int64  `bson:"size" json:"size"`
}

// ReportImage groups the photos of one upload request.
type ReportImage struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReportID  primitive.ObjectID `bson:"report_id" json:"reportId"`
	UserID    primitive.ObjectID `bson:"user_id" json:"userId"`
	Images    []StoredImage      `bson:"images" json:"images"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

type ReportComment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReportID  primitive.ObjectID `bson:"report_id" json:"reportId"`
	UserID    primitive.ObjectID `bson:"user_id" json:"userId"`
	Message   string             `bson:"message" json:"message"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

type CommentView struct {
	ReportComment
	User *UserSummary `json:"user,omitempty"`
}
