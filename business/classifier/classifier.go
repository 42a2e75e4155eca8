package classifier

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"adBudgetEngine/domain"
)

const (
	defaultConfidenceFloor = 0.5
	defaultKeywordWeight   = 0.6
	defaultAudioWeight     = 0.4

	// hits needed for a full keyword score
	keywordSaturation = 2.0
	tagWeight         = 2.0
	maxTempo          = 200.0
)

type Config struct {
	ConfidenceFloor float64
	KeywordWeight   float64
	AudioWeight     float64
}

func DefaultConfig() Config {
	return Config{
		ConfidenceFloor: defaultConfidenceFloor,
		KeywordWeight:   defaultKeywordWeight,
		AudioWeight:     defaultAudioWeight,
	}
}

// Classifier labels content with a genre/subgenre pair. It holds no mutable
// state and is safe for concurrent use.
type Classifier struct {
	cfg      Config
	taxonomy []genre
}

func NewClassifier(cfg Config) *Classifier {
	if cfg.ConfidenceFloor <= 0 || cfg.ConfidenceFloor > 1 {
		cfg.ConfidenceFloor = defaultConfidenceFloor
	}
	if cfg.KeywordWeight < 0 || cfg.AudioWeight < 0 || cfg.KeywordWeight+cfg.AudioWeight == 0 {
		cfg.KeywordWeight = defaultKeywordWeight
		cfg.AudioWeight = defaultAudioWeight
	}
	return &Classifier{cfg: cfg, taxonomy: defaultTaxonomy}
}

type genreScore struct {
	genre    string
	subgenre string
	score    float64
}

// Classify returns the best genre/subgenre guess and a confidence equal to
// the winning score scaled by its relative margin over the runner-up genre.
func (c *Classifier) Classify(features domain.ContentFeatures) (domain.Classification, error) {
	tokens := tokenize(features)
	hasAudio := hasAudioSignal(features)
	if len(tokens) == 0 && !hasAudio {
		return domain.Classification{}, fmt.Errorf("classify: %w: no text or audio features", domain.ErrInvalidInput)
	}

	kw, aw := c.cfg.KeywordWeight, c.cfg.AudioWeight
	if !hasAudio {
		aw = 0
	}
	if len(tokens) == 0 {
		kw = 0
	}

	scores := make([]genreScore, 0, len(c.taxonomy))
	for _, g := range c.taxonomy {
		best := genreScore{genre: g.Name, score: -1}
		for _, sg := range g.Subgenres {
			s := 0.0
			if kw > 0 {
				s += kw * keywordScore(tokens, sg.Keywords)
			}
			if aw > 0 {
				s += aw * audioSimilarity(features, sg.Profile)
			}
			s /= kw + aw
			if s > best.score {
				best.subgenre = sg.Name
				best.score = s
			}
		}
		scores = append(scores, best)
	}

	// stable order so ties resolve the same way on every call
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	top := scores[0]
	second := 0.0
	if len(scores) > 1 {
		second = scores[1].score
	}

	confidence := 0.0
	if top.score > 0 {
		margin := (top.score - second) / top.score
		confidence = clamp01(top.score * margin)
	}

	return domain.Classification{
		Genre:         top.genre,
		Subgenre:      top.subgenre,
		Confidence:    confidence,
		LowConfidence: confidence < c.cfg.ConfidenceFloor,
	}, nil
}

// AsLowConfidence reports the classification's low-confidence flag as an
// error so callers can log it with the other anomalies.
func AsLowConfidence(cl domain.Classification) error {
	if !cl.LowConfidence {
		return nil
	}
	return fmt.Errorf("%w: %s/%s at %.2f", domain.ErrLowConfidence, cl.Genre, cl.Subgenre, cl.Confidence)
}

// IsLowConfidence matches errors produced by AsLowConfidence.
func IsLowConfidence(err error) bool {
	return errors.Is(err, domain.ErrLowConfidence)
}

func tokenize(f domain.ContentFeatures) map[string]float64 {
	out := map[string]float64{}
	split := func(s string) []string {
		return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
	}

	for _, t := range split(f.Title + " " + f.Description) {
		out[t] += 1
	}
	for _, tag := range f.Tags {
		for _, t := range split(tag) {
			out[t] += tagWeight
		}
	}
	return out
}

func keywordScore(tokens map[string]float64, keywords []string) float64 {
	hits := 0.0
	for _, k := range keywords {
		hits += tokens[k]
	}
	return math.Min(1, hits/keywordSaturation)
}

func hasAudioSignal(f domain.ContentFeatures) bool {
	return f.Tempo > 0 || f.Energy > 0 || f.Danceability > 0 ||
		f.Acousticness > 0 || f.Valence > 0 || f.Speechiness > 0
}

// audioSimilarity is 1 - normalized euclidean distance, in [0,1].
func audioSimilarity(f domain.ContentFeatures, p audioProfile) float64 {
	d := []float64{
		clamp01(f.Tempo/maxTempo) - clamp01(p.Tempo/maxTempo),
		clamp01(f.Energy) - p.Energy,
		clamp01(f.Danceability) - p.Danceability,
		clamp01(f.Acousticness) - p.Acousticness,
		clamp01(f.Valence) - p.Valence,
		clamp01(f.Speechiness) - p.Speechiness,
	}
	sum := 0.0
	for _, v := range d {
		sum += v * v
	}
	return clamp01(1 - math.Sqrt(sum)/math.Sqrt(float64(len(d))))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
