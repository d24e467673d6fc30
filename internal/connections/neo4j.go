package connections

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/angelmondragon/linkedge-backend/pkg/config"
	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
)

// Neo4jGraph stores people as (:Person {userId, name}) nodes joined by
// CONNECTED_TO relationships, always written low -> high.
type Neo4jGraph struct {
	driver   neo4j.DriverWithContext
	database string
}

var (
	_ GraphReader  = (*Neo4jGraph)(nil)
	_ EdgeMirror   = (*Neo4jGraph)(nil)
	_ PersonMirror = (*Neo4jGraph)(nil)
)

// NewNeo4jDriver opens a driver and verifies connectivity.
func NewNeo4jDriver(ctx context.Context, cfg config.Neo4jConfig) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verifying neo4j connectivity: %w", err)
	}
	return driver, nil
}

func NewNeo4jGraph(driver neo4j.DriverWithContext, database string) *Neo4jGraph {
	return &Neo4jGraph{driver: driver, database: database}
}

func (g *Neo4jGraph) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: g.database})
}

// EnsureSchema creates the uniqueness constraint on Person.userId.
func (g *Neo4jGraph) EnsureSchema(ctx context.Context) error {
	session := g.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `CREATE CONSTRAINT person_user_id_unique IF NOT EXISTS FOR (p:Person) REQUIRE p.userId IS UNIQUE`, nil)
		return nil, err
	})
	return err
}

func (g *Neo4jGraph) MirrorEdge(ctx context.Context, a, b uuid.UUID) error {
	low, high := models.CanonicalPair(a, b)
	session := g.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (l:Person {userId: $low})
			MERGE (h:Person {userId: $high})
			MERGE (l)-[r:CONNECTED_TO]->(h)
			ON CREATE SET r.createdAt = datetime()
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"low":  low.String(),
			"high": high.String(),
		})
		return nil, err
	})
	return err
}

func (g *Neo4jGraph) UpsertPerson(ctx context.Context, userID uuid.UUID, name string) error {
	session := g.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `MERGE (p:Person {userId: $userId}) SET p.name = $name`, map[string]any{
			"userId": userID.String(),
			"name":   name,
		})
		return nil, err
	})
	return err
}

func (g *Neo4jGraph) FirstDegree(ctx context.Context, userID uuid.UUID) ([]Person, error) {
	session := g.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (:Person {userId: $userId})-[:CONNECTED_TO]-(f:Person)
			RETURN DISTINCT f.userId AS userId, coalesce(f.name, '') AS name
		`
		res, err := tx.Run(ctx, query, map[string]any{"userId": userID.String()})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		people := make([]Person, 0, len(records))
		for _, rec := range records {
			p, err := personFromRecord(rec)
			if err != nil {
				return nil, err
			}
			people = append(people, p)
		}
		return people, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]Person), nil
}

func personFromRecord(rec *neo4j.Record) (Person, error) {
	rawID, _ := rec.Get("userId")
	idStr, ok := rawID.(string)
	if !ok {
		return Person{}, fmt.Errorf("person record has no userId")
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return Person{}, fmt.Errorf("person record userId %q: %w", idStr, err)
	}
	rawName, _ := rec.Get("name")
	name, _ := rawName.(string)
	return Person{UserID: id, Name: name}, nil
}
