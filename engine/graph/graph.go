// Package graph stores the articulation graph in Neo4j: Institution and
// Program nodes, OFFERED_BY edges, and ARTICULATES_TO pathway edges. The
// recommender uses it to resolve institution display names and to walk
// related programs.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/PathwaysAI/pathways-mvp/engine/domain"
)

// ErrNotFound is returned when a looked-up node does not exist.
var ErrNotFound = errors.New("graph: not found")

// Institution is an Institution node.
type Institution struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Program is a Program node.
type Program struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Level         string  `json:"level,omitempty"`
	Subject       string  `json:"subject,omitempty"`
	Credits       float64 `json:"credits,omitempty"`
	InstitutionID string  `json:"institution_id,omitempty"`
}

// Articulation is an ARTICULATES_TO edge between two programs.
type Articulation struct {
	PathwayID       string  `json:"pathway_id"`
	SourceProgramID string  `json:"source_program_id"`
	TargetProgramID string  `json:"target_program_id"`
	TransferCredits float64 `json:"transfer_credits,omitempty"`
}

// Store provides graph operations over an opened Neo4j session per call.
type Store struct {
	opener SessionOpener
	logger *slog.Logger
}

// New creates a Store over a Neo4j driver.
func New(driver neo4j.DriverWithContext, logger *slog.Logger) *Store {
	return NewWithOpener(driverOpener{driver: driver}, logger)
}

// NewWithOpener wires a Store onto an existing session opener. Used in tests.
func NewWithOpener(opener SessionOpener, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{opener: opener, logger: logger}
}

// SaveInstitution creates or updates an Institution node.
func (s *Store) SaveInstitution(ctx context.Context, inst Institution) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MERGE (n:Institution {id: $id}) SET n.name = $name`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"id":   inst.ID,
		"name": inst.Name,
	})
	return err
}

// SaveProgram creates or updates a Program node and links it to its
// institution when one is declared.
func (s *Store) SaveProgram(ctx context.Context, p Program) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MERGE (n:Program {id: $id})
	           SET n.title = $title, n.level = $level, n.subject = $subject, n.credits = $credits, n.institution_id = $instID`
	if p.InstitutionID != "" {
		cypher += `
	           WITH n
	           MATCH (i:Institution {id: $instID})
	           MERGE (n)-[:OFFERED_BY]->(i)`
	}
	_, err := sess.Run(ctx, cypher, programProps(p))
	return err
}

// SaveArticulation creates or updates an ARTICULATES_TO edge between two
// program nodes.
func (s *Store) SaveArticulation(ctx context.Context, a Articulation) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (src:Program {id: $src}), (dst:Program {id: $dst})
	           MERGE (src)-[r:ARTICULATES_TO {pathway_id: $pathwayID}]->(dst)
	           SET r.transfer_credits = $credits`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"src":       a.SourceProgramID,
		"dst":       a.TargetProgramID,
		"pathwayID": a.PathwayID,
		"credits":   a.TransferCredits,
	})
	return err
}

// InstitutionName resolves an institution's display name.
func (s *Store) InstitutionName(ctx context.Context, id string) (string, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (i:Institution {id: $id}) RETURN i.name AS name`
	result, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return "", err
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: institution %s", ErrNotFound, id)
	}
	name, _, err := neo4j.GetRecordValue[string](result.Record(), "name")
	if err != nil {
		return "", err
	}
	return name, nil
}

// RelatedPrograms returns programs reachable from a program over
// ARTICULATES_TO edges within the given traversal depth.
func (s *Store) RelatedPrograms(ctx context.Context, programID string, depth int) ([]Program, error) {
	if depth <= 0 {
		depth = 1
	}
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(
		`MATCH (start:Program {id: $id})-[:ARTICULATES_TO*1..%d]-(n:Program)
		 WHERE n.id <> $id
		 RETURN DISTINCT n`, depth)
	result, err := sess.Run(ctx, cypher, map[string]any{"id": programID})
	if err != nil {
		return nil, err
	}
	return collectPrograms(ctx, result)
}

// ImportExamples upserts the institutions, programs, and articulation edges
// evidenced by a training corpus in a single write transaction. Run after
// retraining so graph lookups stay in step with the vector index.
func (s *Store) ImportExamples(ctx context.Context, examples []domain.TrainingExample) error {
	if len(examples) == 0 {
		return nil
	}
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		for _, ex := range examples {
			if ex.InstitutionID != "" {
				cypher := `MERGE (n:Institution {id: $id}) SET n.name = $name`
				if _, err := tx.Run(ctx, cypher, map[string]any{
					"id": ex.InstitutionID, "name": ex.InstitutionName,
				}); err != nil {
					return nil, err
				}
			}

			p := Program{
				ID:            ex.ProgramID,
				Title:         ex.Title,
				Level:         ex.Level,
				Subject:       ex.Subject,
				Credits:       ex.Credits,
				InstitutionID: ex.InstitutionID,
			}
			cypher := `MERGE (n:Program {id: $id})
			           SET n.title = $title, n.level = $level, n.subject = $subject, n.credits = $credits, n.institution_id = $instID`
			if p.InstitutionID != "" {
				cypher += `
			           WITH n
			           MATCH (i:Institution {id: $instID})
			           MERGE (n)-[:OFFERED_BY]->(i)`
			}
			if _, err := tx.Run(ctx, cypher, programProps(p)); err != nil {
				return nil, err
			}

			// ARTICULATES_TO is reserved for Program-to-Program edges
			// (SaveArticulation), which the RelatedPrograms traversal
			// walks. A training example names only its target program,
			// so the pathway link gets its own relationship type.
			if ex.PathwayID != "" {
				cypher = `MATCH (dst:Program {id: $dst})
				          MERGE (src:Pathway {id: $pathwayID})
				          MERGE (src)-[r:TARGETS]->(dst)
				          SET r.transfer_credits = $credits`
				if _, err := tx.Run(ctx, cypher, map[string]any{
					"dst": ex.ProgramID, "pathwayID": ex.PathwayID, "credits": ex.Credits,
				}); err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("graph: import %d examples: %w", len(examples), err)
	}
	s.logger.Info("articulation graph updated", slog.Int("examples", len(examples)))
	return nil
}

func programProps(p Program) map[string]any {
	return map[string]any{
		"id":      p.ID,
		"title":   p.Title,
		"level":   p.Level,
		"subject": p.Subject,
		"credits": p.Credits,
		"instID":  p.InstitutionID,
	}
}

func collectPrograms(ctx context.Context, result Result) ([]Program, error) {
	var items []Program
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "n")
		if err != nil {
			return nil, err
		}
		items = append(items, programFromProps(node.Props))
	}
	return items, result.Err()
}

func programFromProps(props map[string]any) Program {
	p := Program{
		ID:            strProp(props, "id"),
		Title:         strProp(props, "title"),
		Level:         strProp(props, "level"),
		Subject:       strProp(props, "subject"),
		InstitutionID: strProp(props, "institution_id"),
	}
	if v, ok := props["credits"].(float64); ok {
		p.Credits = v
	}
	return p
}

func strProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}
