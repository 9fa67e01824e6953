package budget

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/dshills/r2md/internal/tokenizer"
	"github.com/dshills/r2md/pkg/types"
)

const (
	// DefaultSplitRatio is the share of a file's tokens that goes to the prompt
	DefaultSplitRatio = 0.8

	// MinSampleTokens is the smallest file, in tokens, that yields a sample
	MinSampleTokens = 2

	// ratioEpsilon keeps float noise in total*ratio from adding a token
	ratioEpsilon = 1e-9
)

// ValidateRatio rejects ratios outside the open interval (0, 1)
func ValidateRatio(ratio float64) error {
	if math.IsNaN(ratio) || ratio <= 0 || ratio >= 1 {
		return &types.SplitRatioError{Ratio: ratio}
	}
	return nil
}

// PromptLength returns ceil(total * ratio), clamped to [1, total]
func PromptLength(total int, ratio float64) int {
	n := int(math.Ceil(float64(total)*ratio - ratioEpsilon))
	if n < 1 {
		n = 1
	}
	if n > total {
		n = total
	}
	return n
}

// Sampler cuts files into prompt/completion pairs at a token ratio
type Sampler struct {
	codec tokenizer.Codec
	ratio float64
}

// NewSampler validates ratio and creates a sampler
func NewSampler(codec tokenizer.Codec, ratio float64) (*Sampler, error) {
	if err := ValidateRatio(ratio); err != nil {
		return nil, err
	}
	return &Sampler{codec: codec, ratio: ratio}, nil
}

// Sample cuts one file's content. ok is false when the file has fewer than
// MinSampleTokens tokens. A side that fails to decode is left empty and
// the sample is still returned.
func (s *Sampler) Sample(content string) (sample types.TrainingSample, ok bool, err error) {
	ids, err := s.codec.Encode(content)
	if err != nil {
		return types.TrainingSample{}, false, fmt.Errorf("failed to encode: %w", err)
	}
	total := len(ids)
	if total < MinSampleTokens {
		return types.TrainingSample{}, false, nil
	}

	cut := PromptLength(total, s.ratio)
	prompt, err := s.codec.Decode(ids[:cut])
	if err != nil {
		log.Warn().Err(err).Msg("prompt decode failed, using empty prompt")
		prompt = ""
	}
	completion, err := s.codec.Decode(ids[cut:])
	if err != nil {
		log.Warn().Err(err).Msg("completion decode failed, using empty completion")
		completion = ""
	}

	return types.TrainingSample{
		Prompt:           prompt,
		Completion:       completion,
		PromptTokens:     cut,
		CompletionTokens: total - cut,
		Tokenizer:        tokenizer.Identity(s.codec),
	}, true, nil
}

// SampleFiles samples files in the order given, which callers keep in
// dependency order. Files that are too short or fail to encode are skipped.
func (s *Sampler) SampleFiles(ctx context.Context, files []types.FileEntry) ([]types.TrainingSample, error) {
	samples := make([]types.TrainingSample, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sample, ok, err := s.Sample(f.Content)
		if err != nil {
			log.Warn().Err(err).Str("file", f.RelativePath).Msg("file skipped")
			continue
		}
		if !ok {
			log.Debug().Str("file", f.RelativePath).Msg("file too short for a sample")
			continue
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// WriteSamples writes samples as one JSON array to path, replacing any
// existing file
func WriteSamples(path string, samples []types.TrainingSample) error {
	if samples == nil {
		samples = []types.TrainingSample{}
	}
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode samples: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".samples-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write samples: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
