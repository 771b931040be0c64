package rank

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/patchwell/linkstash/internal/ai"
	"github.com/patchwell/linkstash/internal/model"
	appErr "github.com/patchwell/linkstash/internal/pkg/errors"
)

// ItemSource supplies the candidate rows scored by the engine.
type ItemSource interface {
	ListSearchable(ctx context.Context, ownerID string) ([]model.Item, error)
}

// EmbeddingSource supplies the stored title embeddings for one owner.
type EmbeddingSource interface {
	ListByOwner(ctx context.Context, ownerID string) ([]model.ItemEmbedding, error)
}

type Options struct {
	Threshold     float64
	MaxResults    int
	MaxQueryChars int
}

type Match struct {
	Item  model.Item
	Score float64
}

// Engine ranks one owner's items against a free-text query by the strongest
// of three signals: lexical token match, trigram similarity and embedding
// cosine similarity. A missing embedder (or missing item embeddings) only
// removes the vector signal.
type Engine struct {
	items    ItemSource
	embeds   EmbeddingSource
	embedder ai.IEmbedder
	opts     Options
}

func NewEngine(items ItemSource, embeds EmbeddingSource, embedder ai.IEmbedder, opts Options) *Engine {
	if opts.Threshold <= 0 {
		opts.Threshold = 0.1
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 100
	}
	if opts.MaxQueryChars <= 0 {
		opts.MaxQueryChars = 512
	}
	return &Engine{items: items, embeds: embeds, embedder: embedder, opts: opts}
}

// Search returns matches ordered by descending score, ties broken by newest
// creation time. Zero threshold/maxResults fall back to the engine defaults.
// An empty query returns no rows; callers show the unfiltered recent list
// instead.
func (e *Engine) Search(ctx context.Context, ownerID, query string, threshold float64, maxResults int) ([]Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Match{}, nil
	}
	if len(query) > e.opts.MaxQueryChars {
		return nil, fmt.Errorf("%w: query exceeds %d chars", appErr.ErrInvalidQuery, e.opts.MaxQueryChars)
	}
	if threshold <= 0 {
		threshold = e.opts.Threshold
	}
	if maxResults <= 0 {
		maxResults = e.opts.MaxResults
	}

	var candidates []model.Item
	embByItem := map[string][]float32{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := e.items.ListSearchable(gctx, ownerID)
		if err != nil {
			return err
		}
		candidates = items
		return nil
	})
	if e.embeds != nil {
		g.Go(func() error {
			embs, err := e.embeds.ListByOwner(gctx, ownerID)
			if err != nil {
				return err
			}
			for _, emb := range embs {
				embByItem[emb.ItemID] = emb.Embedding
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrStoreUnavailable, err)
	}

	queryEmb := e.embedQuery(ctx, query)
	queryTokens := Tokenize(query)
	queryGrams := Trigrams(query)
	queryLower := strings.ToLower(query)

	matches := make([]Match, 0, len(candidates))
	for _, item := range candidates {
		score, include := scoreItem(&item, embByItem[item.ID], queryTokens, queryGrams, queryLower, queryEmb, threshold)
		if include && score > threshold {
			matches = append(matches, Match{Item: item, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Item.CreatedAt != matches[j].Item.CreatedAt {
			return matches[i].Item.CreatedAt > matches[j].Item.CreatedAt
		}
		return matches[i].Item.ID < matches[j].Item.ID
	})
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches, nil
}

// embedQuery is best effort: without a usable embedder the engine simply
// loses the vector signal.
func (e *Engine) embedQuery(ctx context.Context, query string) []float32 {
	if e.embedder == nil {
		return nil
	}
	emb, err := e.embedder.Embed(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		logutil.GetLogger(ctx).Warn("query embedding unavailable, degrading to text signals", zap.Error(err))
		return nil
	}
	return emb
}

func searchedFields(item *model.Item) []string {
	fields := make([]string, 0, 5)
	for _, f := range []string{item.Title, item.Summary, strings.Join(item.Tags, " "), item.SourceName, item.UserNotes} {
		if f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func scoreItem(item *model.Item, titleEmb []float32, queryTokens []string, queryGrams map[string]struct{}, queryLower string, queryEmb []float32, threshold float64) (float64, bool) {
	fields := searchedFields(item)
	if len(fields) == 0 && len(titleEmb) == 0 {
		return 0, false
	}
	concat := strings.Join(fields, " ")

	lexical := false
	if len(queryTokens) > 0 {
		tokenSet := make(map[string]struct{})
		for _, tok := range Tokenize(concat) {
			tokenSet[tok] = struct{}{}
		}
		lexical = true
		for _, tok := range queryTokens {
			if _, ok := tokenSet[tok]; !ok {
				lexical = false
				break
			}
		}
	} else {
		// Punctuation-only queries tokenize to nothing; fall back to raw
		// substring containment.
		lexical = strings.Contains(strings.ToLower(concat), queryLower)
	}

	fuzzy := 0.0
	for _, f := range fields {
		if sim := TrigramSimilarity(queryGrams, Trigrams(f)); sim > fuzzy {
			fuzzy = sim
		}
	}

	vector := 0.0
	if len(queryEmb) > 0 && len(titleEmb) > 0 {
		vector = CosineSimilarity(queryEmb, titleEmb)
	}

	score := fuzzy
	if vector > score {
		score = vector
	}
	if lexical {
		score = 1.0
	}
	include := lexical || fuzzy > threshold || vector > threshold
	return score, include
}
