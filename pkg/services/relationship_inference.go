package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/llm"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/prompts"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/repositories"
)

// RelationshipInferenceService asks the language model for relationships between
// imported tables and stores the new ones unverified.
type RelationshipInferenceService interface {
	AnalyzeRelationships(ctx context.Context, agentID uuid.UUID) (*models.AnalysisResult, error)
}

// InferenceOptions configure the model call.
type InferenceOptions struct {
	MaxTokens   int
	Temperature float64
}

// truncationRiskRatio is the share of the token budget above which a reply may
// have been cut off.
const truncationRiskRatio = 0.95

type relationshipInferenceService struct {
	agentRepo  repositories.AgentRepository
	schemaRepo repositories.SchemaRepository
	llmClient  llm.LLMClient
	opts       InferenceOptions
	logger     *zap.Logger
}

// NewRelationshipInferenceService creates a RelationshipInferenceService.
func NewRelationshipInferenceService(
	agentRepo repositories.AgentRepository,
	schemaRepo repositories.SchemaRepository,
	llmClient llm.LLMClient,
	opts InferenceOptions,
	logger *zap.Logger,
) RelationshipInferenceService {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 8192
	}
	return &relationshipInferenceService{
		agentRepo:  agentRepo,
		schemaRepo: schemaRepo,
		llmClient:  llmClient,
		opts:       opts,
		logger:     logger.Named("relationship-inference"),
	}
}

var _ RelationshipInferenceService = (*relationshipInferenceService)(nil)

// inferenceSchema is the imported schema of one data agent. A table imported in
// several environments is shown to the model once; candidates are merged into
// every environment where both ends resolve.
type inferenceSchema struct {
	tables       []*models.Table
	environments []uuid.UUID
	contexts     []prompts.TableContext
	existing     []*models.Relationship
}

func (s *relationshipInferenceService) AnalyzeRelationships(ctx context.Context, agentID uuid.UUID) (*models.AnalysisResult, error) {
	schema, err := s.loadSchema(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if len(schema.tables) == 0 {
		return nil, apperrors.NewConfigurationError("data agent %s has no imported tables to analyze", agentID)
	}

	// PROMPT_BUILD
	jsonMode := s.llmClient.SupportsJSONMode()
	prompt := prompts.BuildRelationshipInferencePrompt(schema.contexts, knownRelationships(schema), jsonMode)

	// MODEL_CALL
	resp, err := s.llmClient.GenerateResponse(ctx, llm.Request{
		SystemMessage: prompts.BuildRelationshipInferenceSystemMessage(),
		Prompt:        prompt,
		Temperature:   s.opts.Temperature,
		MaxTokens:     s.opts.MaxTokens,
		JSONMode:      jsonMode,
	})
	if err != nil {
		s.logger.Error("Relationship inference model call failed",
			zap.String("data_agent_id", agentID.String()),
			zap.String("model", s.llmClient.GetModel()),
			zap.Error(err))
		return nil, llm.AsInvocationError(err)
	}

	truncationRisk := resp.Truncated || float64(resp.CompletionTokens) >= truncationRiskRatio*float64(s.opts.MaxTokens)
	fields := []zap.Field{
		zap.String("data_agent_id", agentID.String()),
		zap.Int("max_tokens", s.opts.MaxTokens),
		zap.Int("prompt_tokens", resp.PromptTokens),
		zap.Int("completion_tokens", resp.CompletionTokens),
		zap.Bool("json_mode", jsonMode),
	}
	if truncationRisk {
		s.logger.Warn("Relationship inference reply may be truncated", append(fields, zap.Bool("truncation_risk", true))...)
	} else {
		s.logger.Info("Relationship inference reply received", fields...)
	}

	// RESPONSE_SPLIT, JSON_EXTRACT, JSON_REPAIR
	parsed := parseRelationshipResponse(resp.Content)
	if parsed.Failed {
		s.logger.Warn("Could not parse relationship data, continuing with none",
			zap.String("data_agent_id", agentID.String()),
			zap.String("error_kind", string(apperrors.KindParse)),
			zap.Int("content_len", len(resp.Content)))
	} else if parsed.Repaired {
		s.logger.Info("Repaired truncated relationship data", zap.Int("elements", len(parsed.Elements)))
	}

	// FILTER
	candidates := filterCandidates(parsed.Elements)

	// MERGE
	created := s.mergeCandidates(ctx, agentID, schema, candidates)

	return &models.AnalysisResult{
		AnalysisText:         parsed.Analysis,
		RelationshipsCreated: created,
		TotalSuggestions:     len(parsed.Elements),
		AcceptedSuggestions:  len(candidates),
		Truncated:            truncationRisk || parsed.Repaired,
		PromptTokens:         resp.PromptTokens,
		CompletionTokens:     resp.CompletionTokens,
	}, nil
}

func (s *relationshipInferenceService) loadSchema(ctx context.Context, agentID uuid.UUID) (*inferenceSchema, error) {
	tables, err := s.schemaRepo.ListTablesByAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	schema := &inferenceSchema{tables: tables}
	labels := s.environmentLabels(ctx, agentID)
	envSeen := make(map[uuid.UUID]bool)
	for _, t := range tables {
		if !envSeen[t.EnvironmentID] {
			envSeen[t.EnvironmentID] = true
			schema.environments = append(schema.environments, t.EnvironmentID)
		}
	}
	sort.Slice(schema.environments, func(i, j int) bool {
		return environmentLabel(labels, schema.environments[i]) < environmentLabel(labels, schema.environments[j])
	})
	multiEnv := len(schema.environments) > 1

	byName := make(map[string]int, len(tables))
	for _, t := range tables {
		columns, err := s.schemaRepo.ListColumnsByTable(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("list columns of %s: %w", t.QualifiedName(), err)
		}

		key := strings.ToLower(t.QualifiedName())
		i, ok := byName[key]
		if !ok {
			i = len(schema.contexts)
			byName[key] = i
			schema.contexts = append(schema.contexts, prompts.TableContext{
				Name:     t.QualifiedName(),
				RowCount: t.RowCount,
				Comment:  t.Comment,
			})
		}
		tc := &schema.contexts[i]
		if multiEnv {
			tc.Environments = append(tc.Environments, environmentLabel(labels, t.EnvironmentID))
		}
		if t.RowCount > tc.RowCount {
			tc.RowCount = t.RowCount
		}
		mergeColumns(tc, columns)
		mergeIndexes(tc, t.Indexes)
	}
	sort.SliceStable(schema.contexts, func(i, j int) bool {
		return schema.contexts[i].Name < schema.contexts[j].Name
	})
	for i := range schema.contexts {
		sort.Strings(schema.contexts[i].Environments)
	}

	schema.existing, err = s.schemaRepo.ListRelationshipsByAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	return schema, nil
}

// environmentLabels maps environment IDs to names. Labels only decorate the
// prompt, so a lookup failure falls back to IDs.
func (s *relationshipInferenceService) environmentLabels(ctx context.Context, agentID uuid.UUID) map[uuid.UUID]string {
	labels := make(map[uuid.UUID]string)
	if s.agentRepo == nil {
		return labels
	}
	envs, err := s.agentRepo.ListEnvironments(ctx, agentID)
	if err != nil {
		s.logger.Warn("Could not list environments, labelling by id",
			zap.String("data_agent_id", agentID.String()),
			zap.Error(err))
		return labels
	}
	for _, e := range envs {
		labels[e.ID] = e.Name
	}
	return labels
}

func environmentLabel(labels map[uuid.UUID]string, id uuid.UUID) string {
	if name := labels[id]; name != "" {
		return name
	}
	return id.String()
}

// mergeIndexes adds the indexes tc does not have yet, matched by name.
func mergeIndexes(tc *prompts.TableContext, indexes []models.Index) {
	for _, idx := range indexes {
		known := false
		for _, have := range tc.Indexes {
			if strings.EqualFold(have.Name, idx.Name) {
				known = true
				break
			}
		}
		if !known {
			tc.Indexes = append(tc.Indexes, prompts.IndexContext{Name: idx.Name, Columns: idx.Columns, IsUnique: idx.IsUnique})
		}
	}
}

// mergeColumns adds the columns tc does not have yet, keeping first-seen order.
func mergeColumns(tc *prompts.TableContext, columns []*models.Column) {
	have := make(map[string]bool, len(tc.Columns))
	for _, c := range tc.Columns {
		have[strings.ToLower(c.Name)] = true
	}
	for _, c := range columns {
		if have[strings.ToLower(c.ColumnName)] {
			continue
		}
		have[strings.ToLower(c.ColumnName)] = true
		tc.Columns = append(tc.Columns, prompts.ColumnContext{
			Name:         c.ColumnName,
			DataType:     c.DataType,
			IsNullable:   c.IsNullable,
			IsPrimaryKey: c.IsPrimaryKey,
			IsUnique:     c.IsUnique,
			DefaultValue: c.DefaultValue,
			Comment:      c.Comment,
		})
	}
}

func knownRelationships(schema *inferenceSchema) []prompts.KnownRelationship {
	names := make(map[uuid.UUID]string, len(schema.tables))
	for _, t := range schema.tables {
		names[t.ID] = t.QualifiedName()
	}
	var known []prompts.KnownRelationship
	listed := make(map[prompts.KnownRelationship]bool)
	for _, r := range schema.existing {
		k := prompts.KnownRelationship{
			SourceTable:  names[r.SourceTableID],
			SourceColumn: r.SourceColumn,
			TargetTable:  names[r.TargetTableID],
			TargetColumn: r.TargetColumn,
			Kind:         string(r.Kind),
		}
		if listed[k] {
			continue
		}
		listed[k] = true
		known = append(known, k)
	}
	return known
}

// mergeCandidates stores candidates that name imported tables and are not yet
// known, once per environment where both tables resolve. Each candidate is
// handled on its own; failures are logged and skipped.
func (s *relationshipInferenceService) mergeCandidates(ctx context.Context, agentID uuid.UUID, schema *inferenceSchema, candidates []models.RelationshipCandidate) int {
	byEnv := make(map[uuid.UUID][]*models.Table, len(schema.environments))
	for _, t := range schema.tables {
		byEnv[t.EnvironmentID] = append(byEnv[t.EnvironmentID], t)
	}
	resolvers := make([]*tableResolver, 0, len(schema.environments))
	for _, envID := range schema.environments {
		resolvers = append(resolvers, newTableResolver(byEnv[envID]))
	}

	seen := make(map[models.RelationshipKey]bool, len(schema.existing))
	for _, r := range schema.existing {
		seen[r.Key()] = true
	}

	created := 0
	for _, c := range candidates {
		matched := false
		for _, resolver := range resolvers {
			source := resolver.resolve(c.SourceTable)
			target := resolver.resolve(c.TargetTable)
			if source == nil || target == nil {
				continue
			}
			matched = true
			if s.storeCandidate(ctx, agentID, source, target, c, seen) {
				created++
			}
		}
		if !matched {
			s.logger.Debug("Dropping relationship for unknown table",
				zap.String("source", c.SourceTable),
				zap.String("target", c.TargetTable))
		}
	}
	return created
}

// storeCandidate inserts c between source and target, which belong to the same
// environment. It reports whether a new row was created.
func (s *relationshipInferenceService) storeCandidate(ctx context.Context, agentID uuid.UUID, source, target *models.Table, c models.RelationshipCandidate, seen map[models.RelationshipKey]bool) bool {
	rel := &models.Relationship{
		DataAgentID:   agentID,
		EnvironmentID: source.EnvironmentID,
		SourceTableID: source.ID,
		SourceColumn:  c.SourceColumn,
		TargetTableID: target.ID,
		TargetColumn:  c.TargetColumn,
		Kind:          c.Kind,
		Confidence:    c.Confidence,
		Description:   c.Description,
		Example:       c.Example,
		Source:        models.RelationshipSourceInferred,
		IsVerified:    false,
	}
	key := rel.Key()
	if seen[key] {
		return false
	}
	seen[key] = true

	existing, err := s.schemaRepo.FindExistingRelationship(ctx, key)
	if err != nil {
		s.logger.Warn("Failed to check for existing relationship", zap.Error(err))
		return false
	}
	if existing != nil {
		return false
	}

	inserted, err := s.schemaRepo.UpsertRelationship(ctx, rel)
	if err != nil {
		s.logger.Warn("Failed to store inferred relationship",
			zap.String("source", source.QualifiedName()+"."+c.SourceColumn),
			zap.String("target", target.QualifiedName()+"."+c.TargetColumn),
			zap.String("environment_id", source.EnvironmentID.String()),
			zap.Error(err))
		return false
	}
	return inserted
}

// tableResolver matches model-supplied table names, bare or schema-qualified,
// against the imported tables of one environment case-insensitively. Ambiguous
// bare names do not match.
type tableResolver struct {
	qualified map[string]*models.Table
	bare      map[string][]*models.Table
}

func newTableResolver(tables []*models.Table) *tableResolver {
	r := &tableResolver{
		qualified: make(map[string]*models.Table, len(tables)),
		bare:      make(map[string][]*models.Table, len(tables)),
	}
	for _, t := range tables {
		r.qualified[strings.ToLower(t.QualifiedName())] = t
		name := strings.ToLower(t.TableName)
		r.bare[name] = append(r.bare[name], t)
	}
	return r
}

func (r *tableResolver) resolve(name string) *models.Table {
	name = strings.ToLower(strings.TrimSpace(name))
	if t, ok := r.qualified[name]; ok {
		return t
	}
	if matches := r.bare[name]; len(matches) == 1 {
		return matches[0]
	}
	return nil
}
