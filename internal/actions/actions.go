// Package actions describes the sustainable actions a user can log and
// produces their metadata.
package actions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/suspectuso/green-coin/internal/greencoin"
)

var (
	ErrUnknownType     = errors.New("unknown action type")
	ErrInvalidMetadata = errors.New("invalid action metadata")
)

// Kind is an entry of the action catalog
type Kind struct {
	Type        string
	Emoji       string
	Title       string
	Description string
}

// Catalog lists the actions in display order
var Catalog = []Kind{
	{greencoin.ActionCloseTabs, "🗂️", "Close Browser Tabs", "Reduce energy by closing unused tabs"},
	{greencoin.ActionEfficientDrive, "🚗", "Efficient Driving", "Log your eco-friendly commute"},
	{greencoin.ActionAIOptimize, "🤖", "AI Optimization", "Use efficient AI prompts"},
	{greencoin.ActionServerOptimize, "💻", "Server Optimization", "Optimize server resource usage"},
}

// Lookup returns the catalog entry of actionType
func Lookup(actionType string) (Kind, bool) {
	for _, k := range Catalog {
		if k.Type == actionType {
			return k, true
		}
	}
	return Kind{}, false
}

// Validate checks the type and metadata shape of a submission
func Validate(sub greencoin.ActionSubmission) error {
	switch sub.ActionType {
	case greencoin.ActionCloseTabs:
		return requireCount(sub.Metadata, "tabs")
	case greencoin.ActionEfficientDrive:
		if err := requireCount(sub.Metadata, "distance_km"); err != nil {
			return err
		}
		if s, ok := sub.Metadata["efficiency"].(string); !ok || s == "" {
			return fmt.Errorf("%w: efficiency must be a non-empty string", ErrInvalidMetadata)
		}
		return nil
	case greencoin.ActionAIOptimize:
		return requireCount(sub.Metadata, "prompts_optimized")
	case greencoin.ActionServerOptimize:
		return requireCount(sub.Metadata, "kwh_saved")
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, sub.ActionType)
	}
}

// requireCount accepts any non-negative integral number, including the
// float64 produced by decoding JSON.
func requireCount(md map[string]any, key string) error {
	v, ok := md[key]
	if !ok {
		return fmt.Errorf("%w: %s is required", ErrInvalidMetadata, key)
	}

	var n float64
	switch x := v.(type) {
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case float64:
		n = x
	default:
		return fmt.Errorf("%w: %s must be a number", ErrInvalidMetadata, key)
	}

	if n < 0 || n != math.Trunc(n) {
		return fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidMetadata, key)
	}
	return nil
}

// Source produces metadata for an action type
type Source interface {
	Metadata(ctx context.Context, actionType string) (map[string]any, error)
}

// Submission builds a validated submission using src
func Submission(ctx context.Context, src Source, actionType string) (greencoin.ActionSubmission, error) {
	if _, ok := Lookup(actionType); !ok {
		return greencoin.ActionSubmission{}, fmt.Errorf("%w: %q", ErrUnknownType, actionType)
	}

	md, err := src.Metadata(ctx, actionType)
	if err != nil {
		return greencoin.ActionSubmission{}, fmt.Errorf("collect metadata: %w", err)
	}

	sub := greencoin.ActionSubmission{ActionType: actionType, Metadata: md}
	if err := Validate(sub); err != nil {
		return greencoin.ActionSubmission{}, err
	}
	return sub, nil
}

// Random draws metadata from the demo ranges of the dashboard
type Random struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandom returns a Random source; equal seeds give equal sequences
func NewRandom(seed uint64) *Random {
	return &Random{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *Random) between(lo, hi int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo + r.rnd.IntN(hi-lo+1)
}

func (r *Random) Metadata(ctx context.Context, actionType string) (map[string]any, error) {
	switch actionType {
	case greencoin.ActionCloseTabs:
		return map[string]any{"tabs": r.between(5, 19)}, nil
	case greencoin.ActionEfficientDrive:
		return map[string]any{"distance_km": r.between(5, 24), "efficiency": "good"}, nil
	case greencoin.ActionAIOptimize:
		return map[string]any{"prompts_optimized": r.between(5, 14)}, nil
	case greencoin.ActionServerOptimize:
		return map[string]any{"kwh_saved": r.between(1, 5)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, actionType)
	}
}
