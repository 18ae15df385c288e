// Package neo4jstore implements the ScriptureReader port directly against a
// Neo4j database holding Verse nodes and REFERENCES relationships. It is an
// alternative to the HTTP client for deployments that colocate the graph
// database with this service.
package neo4jstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v4/neo4j"
	"go.uber.org/zap"

	"versegraph/application/ports"
	"versegraph/domain/core/valueobjects"
	pkgerrors "versegraph/pkg/errors"
)

// ScriptureStore reads verses and cross-references from Neo4j
type ScriptureStore struct {
	driver neo4j.Driver
	logger *zap.Logger
}

// NewScriptureStore connects to Neo4j and verifies the connection
func NewScriptureStore(uri, username, password string, logger *zap.Logger) (*ScriptureStore, error) {
	driver, err := neo4j.NewDriver(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, pkgerrors.NewExternalError("neo4j", err)
	}
	if err := driver.VerifyConnectivity(); err != nil {
		return nil, pkgerrors.NewExternalError("neo4j", err)
	}
	return &ScriptureStore{driver: driver, logger: logger}, nil
}

var _ ports.ScriptureReader = (*ScriptureStore)(nil)

// Close releases the driver's connection pool
func (s *ScriptureStore) Close() error {
	return s.driver.Close()
}

// GetVerse fetches a single verse's details
func (s *ScriptureStore) GetVerse(ctx context.Context, key valueobjects.VerseKey) (*ports.Verse, error) {
	session := s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		res, err := tx.Run(`
			MATCH (v:Verse)
			WHERE v.book = $book AND v.chapter = $chapter AND v.verse = $verse
			RETURN v.text AS text`,
			map[string]interface{}{
				"book":    key.Book(),
				"chapter": key.Chapter(),
				"verse":   key.Verse(),
			})
		if err != nil {
			return nil, err
		}
		record, err := res.Single()
		if err != nil {
			return nil, pkgerrors.NewNotFoundError("verse")
		}
		text, _ := record.Get("text")
		return text, nil
	})
	if err != nil {
		return nil, s.mapError(err, "get verse")
	}

	text, _ := result.(string)
	return &ports.Verse{Key: key, Text: text}, nil
}

// GetNeighborhood fetches the relationship window for one (book, chapter) page
func (s *ScriptureStore) GetNeighborhood(ctx context.Context, page valueobjects.PageKey, limit int) ([]ports.Relationship, error) {
	session := s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		res, err := tx.Run(`
			MATCH (v1:Verse)-[:REFERENCES]->(v2:Verse)
			WHERE v1.book = $book AND v1.chapter = $chapter
			RETURN
				v1.book AS source_book, v1.chapter AS source_chapter, v1.verse AS source_verse,
				v2.book AS target_book, v2.chapter AS target_chapter, v2.verse AS target_verse
			LIMIT $limit`,
			map[string]interface{}{
				"book":    page.Book(),
				"chapter": page.Chapter(),
				"limit":   limit,
			})
		if err != nil {
			return nil, err
		}

		var relationships []ports.Relationship
		for res.Next() {
			record := res.Record()
			source, sErr := verseKeyFromRecord(record, "source_book", "source_chapter", "source_verse")
			target, tErr := verseKeyFromRecord(record, "target_book", "target_chapter", "target_verse")
			if sErr != nil || tErr != nil {
				s.logger.Warn("skipping malformed relationship record",
					zap.NamedError("source", sErr),
					zap.NamedError("target", tErr),
				)
				continue
			}
			relationships = append(relationships, ports.Relationship{Source: source, Target: target})
		}
		return relationships, res.Err()
	})
	if err != nil {
		return nil, s.mapError(err, "get neighborhood")
	}

	relationships, _ := result.([]ports.Relationship)
	if relationships == nil {
		relationships = []ports.Relationship{}
	}
	return relationships, nil
}

// GetCrossReferences fetches the direct cross-references of one verse
func (s *ScriptureStore) GetCrossReferences(ctx context.Context, key valueobjects.VerseKey) ([]valueobjects.VerseKey, error) {
	session := s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		res, err := tx.Run(`
			MATCH (v1:Verse)-[:REFERENCES]->(v2:Verse)
			WHERE v1.book = $book AND v1.chapter = $chapter AND v1.verse = $verse
			RETURN v2.book AS book, v2.chapter AS chapter, v2.verse AS verse`,
			map[string]interface{}{
				"book":    key.Book(),
				"chapter": key.Chapter(),
				"verse":   key.Verse(),
			})
		if err != nil {
			return nil, err
		}

		var keys []valueobjects.VerseKey
		for res.Next() {
			record := res.Record()
			parsed, pErr := verseKeyFromRecord(record, "book", "chapter", "verse")
			if pErr != nil {
				s.logger.Warn("skipping malformed cross-reference record", zap.Error(pErr))
				continue
			}
			keys = append(keys, parsed)
		}
		return keys, res.Err()
	})
	if err != nil {
		return nil, s.mapError(err, "get cross references")
	}

	keys, _ := result.([]valueobjects.VerseKey)
	if keys == nil {
		keys = []valueobjects.VerseKey{}
	}
	return keys, nil
}

func verseKeyFromRecord(record *neo4j.Record, bookField, chapterField, verseField string) (valueobjects.VerseKey, error) {
	bookVal, _ := record.Get(bookField)
	chapterVal, _ := record.Get(chapterField)
	verseVal, _ := record.Get(verseField)

	book, ok := bookVal.(string)
	if !ok {
		return valueobjects.VerseKey{}, fmt.Errorf("field %s is not a string", bookField)
	}
	chapter, ok := chapterVal.(int64)
	if !ok {
		return valueobjects.VerseKey{}, fmt.Errorf("field %s is not an integer", chapterField)
	}
	verse, ok := verseVal.(int64)
	if !ok {
		return valueobjects.VerseKey{}, fmt.Errorf("field %s is not an integer", verseField)
	}

	return valueobjects.NewVerseKey(book, int(chapter), int(verse))
}

func (s *ScriptureStore) mapError(err error, operation string) error {
	if pkgerrors.IsNotFound(err) {
		return err
	}
	s.logger.Warn("neo4j query failed", zap.String("operation", operation), zap.Error(err))
	return pkgerrors.NewExternalError("neo4j", err)
}
