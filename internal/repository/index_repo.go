package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/owasp-nest/nest-api/internal/models"
	"github.com/owasp-nest/nest-api/internal/search"
)

// ErrIndexMismatch is returned when a repository is asked to search an index it does not hold.
var ErrIndexMismatch = errors.New("index does not match repository")

const (
	defaultIndexPageSize = 25
	maxRankCandidates    = 1000
)

// IndexRepository serves a listing index straight from the database.
type IndexRepository[T models.Searchable] struct {
	db        *gorm.DB
	pageSize  int
	rankLimit int
}

// NewIndexRepository constructs a database-backed index.
func NewIndexRepository[T models.Searchable](db *gorm.DB, pageSize int) *IndexRepository[T] {
	if pageSize <= 0 {
		pageSize = defaultIndexPageSize
	}
	return &IndexRepository[T]{db: db, pageSize: pageSize, rankLimit: maxRankCandidates}
}

// Search implements search.Client. Empty queries list every record in the
// index's default order; otherwise rows matching any search column are
// ranked by how closely their name matches the query.
func (r *IndexRepository[T]) Search(ctx context.Context, index, query string, page int) (search.Page[T], error) {
	var zero T
	if index != zero.IndexName() {
		return search.Page[T]{}, fmt.Errorf("%w: %s", ErrIndexMismatch, index)
	}
	if page <= 0 {
		page = 1
	}

	base := r.db.WithContext(ctx).Model(new(T))
	term := strings.ToLower(strings.TrimSpace(query))
	if term != "" {
		pattern := "%" + escapeLike(term) + "%"
		conditions := make([]string, 0, len(zero.SearchColumns()))
		args := make([]interface{}, 0, len(zero.SearchColumns()))
		for _, column := range zero.SearchColumns() {
			conditions = append(conditions, fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, column))
			args = append(args, pattern)
		}
		base = base.Where(strings.Join(conditions, " OR "), args...)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return search.Page[T]{}, err
	}

	result := search.Page[T]{TotalItems: total, TotalPages: totalPages(total, r.pageSize)}
	offset := (page - 1) * r.pageSize

	if term == "" {
		var items []T
		if err := base.Order(zero.DefaultOrder()).Offset(offset).Limit(r.pageSize).Find(&items).Error; err != nil {
			return search.Page[T]{}, err
		}
		result.Items = items
		return result, nil
	}

	var candidates []T
	if err := base.Order(zero.DefaultOrder()).Limit(r.rankLimit).Find(&candidates).Error; err != nil {
		return search.Page[T]{}, err
	}
	// Only the ranked candidates are reachable by paging.
	if int64(len(candidates)) < total {
		result.TotalItems = int64(len(candidates))
		result.TotalPages = totalPages(result.TotalItems, r.pageSize)
	}
	ranked := rankByText(query, candidates)
	if offset >= len(ranked) {
		result.Items = []T{}
		return result, nil
	}
	end := offset + r.pageSize
	if end > len(ranked) {
		end = len(ranked)
	}
	result.Items = ranked[offset:end]
	return result, nil
}

// UpsertBatch inserts or refreshes records keyed by their key column.
func (r *IndexRepository[T]) UpsertBatch(ctx context.Context, items []T) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	})

	result := tx.Create(&items)
	return result.RowsAffected, result.Error
}

// rankByText orders fuzzy matches on RankText first, closest first, then the
// remaining candidates in their original order.
func rankByText[T models.Searchable](query string, candidates []T) []T {
	texts := make([]string, len(candidates))
	for i, candidate := range candidates {
		texts[i] = candidate.RankText()
	}

	ranks := fuzzy.RankFindNormalizedFold(strings.TrimSpace(query), texts)
	sort.Stable(ranks)

	ordered := make([]T, 0, len(candidates))
	seen := make(map[int]struct{}, len(ranks))
	for _, rank := range ranks {
		ordered = append(ordered, candidates[rank.OriginalIndex])
		seen[rank.OriginalIndex] = struct{}{}
	}
	for i, candidate := range candidates {
		if _, ok := seen[i]; !ok {
			ordered = append(ordered, candidate)
		}
	}
	return ordered
}

// escapeLike quotes the LIKE wildcards in term for use with ESCAPE '\'.
func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func totalPages(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
