package implementation

import (
	"context"

	"rag-agent-be/internal/model"
	"rag-agent-be/internal/repository/contract"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type DocumentRepositoryImpl struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) contract.DocumentRepository {
	return &DocumentRepositoryImpl{db: db}
}

// SearchSimilarWithScore returns documents ordered by cosine similarity.
// Cosine distance in pgvector is: 1 - cosine_similarity
// So we compute: 1 - (embedding_value <=> query_vector) = cosine_similarity
func (r *DocumentRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, allowedAuthors []string) ([]*contract.ScoredDocument, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		model.Document
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	query := r.db.WithContext(ctx).
		Table("document_embeddings").
		Select("documents.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Joins("JOIN documents ON documents.id = document_embeddings.document_id").
		Where("document_embeddings.deleted_at IS NULL").
		Where("documents.deleted_at IS NULL")

	if len(allowedAuthors) > 0 {
		query = query.Where("documents.author IN ?", allowedAuthors)
	}

	err := query.
		Order("similarity DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredDocument, len(results))
	for i := range results {
		doc := results[i].Document
		scored[i] = &contract.ScoredDocument{
			Document: &doc,
			Score:    results[i].Similarity,
		}
	}
	return scored, nil
}

// SearchLexicalWithScore runs a Postgres full-text search over title and
// content. ts_rank_cd scores are query-relative; no relationship to the
// vector scale is assumed anywhere downstream.
func (r *DocumentRepositoryImpl) SearchLexicalWithScore(ctx context.Context, queryText string, limit int, allowedAuthors []string) ([]*contract.ScoredDocument, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		model.Document
		Rank float64
	}
	var results []result

	tsVector := "to_tsvector('simple', documents.title || ' ' || documents.content)"

	query := r.db.WithContext(ctx).
		Table("documents").
		Select("documents.*, ts_rank_cd("+tsVector+", websearch_to_tsquery('simple', ?)) as rank", queryText).
		Where(tsVector+" @@ websearch_to_tsquery('simple', ?)", queryText).
		Where("documents.deleted_at IS NULL")

	if len(allowedAuthors) > 0 {
		query = query.Where("documents.author IN ?", allowedAuthors)
	}

	err := query.
		Order("rank DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredDocument, len(results))
	for i := range results {
		doc := results[i].Document
		scored[i] = &contract.ScoredDocument{
			Document: &doc,
			Score:    results[i].Rank,
		}
	}
	return scored, nil
}
