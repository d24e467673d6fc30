package connections

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Person is one node of the social graph as returned to callers.
type Person struct {
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name"`
}

// GraphReader answers first-degree queries.
type GraphReader interface {
	FirstDegree(ctx context.Context, userID uuid.UUID) ([]Person, error)
}

// EdgeMirror copies accepted edges into a secondary graph store. Writes must
// be idempotent.
type EdgeMirror interface {
	MirrorEdge(ctx context.Context, a, b uuid.UUID) error
}

// PersonMirror copies people into a secondary graph store.
type PersonMirror interface {
	UpsertPerson(ctx context.Context, userID uuid.UUID, name string) error
}

// SQLGraph reads first-degree connections from connection_edges.
type SQLGraph struct {
	db *gorm.DB
}

func NewSQLGraph(db *gorm.DB) *SQLGraph {
	return &SQLGraph{db: db}
}

const firstDegreeSQL = `
SELECT e.other_id AS user_id, COALESCE(p.name, '') AS name
FROM (
	SELECT CASE WHEN user_low = ? THEN user_high ELSE user_low END AS other_id
	FROM connection_edges
	WHERE user_low = ? OR user_high = ?
) e
LEFT JOIN people p ON p.user_id = e.other_id`

func (g *SQLGraph) FirstDegree(ctx context.Context, userID uuid.UUID) ([]Person, error) {
	var rows []struct {
		UserID uuid.UUID
		Name   string
	}
	if err := g.db.WithContext(ctx).Raw(firstDegreeSQL, userID, userID, userID).Scan(&rows).Error; err != nil {
		return nil, err
	}
	people := make([]Person, 0, len(rows))
	for _, row := range rows {
		people = append(people, Person{UserID: row.UserID, Name: row.Name})
	}
	return people, nil
}
