package models

import (
	"time"

	"github.com/google/uuid"
)

// Cardinality is the kind of a relationship between two tables.
type Cardinality string

const (
	CardinalityOneToOne   Cardinality = "one_to_one"
	CardinalityOneToMany  Cardinality = "one_to_many"
	CardinalityManyToMany Cardinality = "many_to_many"
)

// IsValidCardinality reports whether c is one of the accepted relationship kinds.
func IsValidCardinality(c Cardinality) bool {
	switch c {
	case CardinalityOneToOne, CardinalityOneToMany, CardinalityManyToMany:
		return true
	}
	return false
}

// RelationshipSource records how a relationship was found.
type RelationshipSource string

const (
	RelationshipSourceForeignKey RelationshipSource = "foreign_key"
	RelationshipSourceInferred   RelationshipSource = "inferred"
)

// RelationshipCandidate is a relationship proposed by the language model, before
// it is matched against imported tables.
type RelationshipCandidate struct {
	SourceTable  string      `json:"source_table"`
	SourceColumn string      `json:"source_column"`
	TargetTable  string      `json:"target_table"`
	TargetColumn string      `json:"target_column"`
	Kind         Cardinality `json:"kind"`
	Confidence   float64     `json:"confidence"`
	Description  string      `json:"description,omitempty"`
	Example      string      `json:"example,omitempty"`
}

// Relationship is a persisted relationship. At most one row exists per
// (DataAgentID, SourceTableID, TargetTableID, SourceColumn, TargetColumn).
// Inferred relationships are stored with IsVerified=false.
type Relationship struct {
	ID            uuid.UUID          `json:"id"`
	DataAgentID   uuid.UUID          `json:"data_agent_id"`
	EnvironmentID uuid.UUID          `json:"environment_id"`
	SourceTableID uuid.UUID          `json:"source_table_id"`
	SourceColumn  string             `json:"source_column"`
	TargetTableID uuid.UUID          `json:"target_table_id"`
	TargetColumn  string             `json:"target_column"`
	Kind          Cardinality        `json:"kind"`
	Confidence    float64            `json:"confidence"`
	Description   string             `json:"description,omitempty"`
	Example       string             `json:"example,omitempty"`
	Source        RelationshipSource `json:"source"`
	IsVerified    bool               `json:"is_verified"`
	CreatedAt     time.Time          `json:"created_at"`
}

// RelationshipKey identifies a relationship for duplicate detection.
type RelationshipKey struct {
	DataAgentID   uuid.UUID
	SourceTableID uuid.UUID
	TargetTableID uuid.UUID
	SourceColumn  string
	TargetColumn  string
}

// Key returns the uniqueness key of r.
func (r *Relationship) Key() RelationshipKey {
	return RelationshipKey{
		DataAgentID:   r.DataAgentID,
		SourceTableID: r.SourceTableID,
		TargetTableID: r.TargetTableID,
		SourceColumn:  r.SourceColumn,
		TargetColumn:  r.TargetColumn,
	}
}

// AnalysisResult is the outcome of one relationship inference run.
type AnalysisResult struct {
	AnalysisText         string `json:"analysis_text"`
	RelationshipsCreated int    `json:"relationships_created"`
	TotalSuggestions     int    `json:"total_suggestions"`
	AcceptedSuggestions  int    `json:"accepted_suggestions"`
	Truncated            bool   `json:"truncated"`
	PromptTokens         int    `json:"prompt_tokens"`
	CompletionTokens     int    `json:"completion_tokens"`
}
