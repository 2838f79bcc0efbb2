// Package pipeline implements the matching coordinator: the sequence of
// stages a submitted report goes through, from image fingerprinting to
// owner notification. One Run handles exactly one report; stages execute in
// order and the coordinator converts every internal failure into either a
// documented fallback or a single returned error, never a panic.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/HarshS99/lostandfound/internal/imaging"
	"github.com/HarshS99/lostandfound/internal/model"
	"github.com/HarshS99/lostandfound/internal/notify"
	"github.com/HarshS99/lostandfound/internal/similarity"
)

// Store is the persistence surface the coordinator needs: synchronous
// insert and a full scan in insertion order.
type Store interface {
	InsertItem(ctx context.Context, item *model.Item, image []byte, mime string) (int64, error)
	FetchAllItems(ctx context.Context) ([]model.Item, error)
}

// Reasoner supplies embeddings, candidate rankings, and contact
// anonymization. Implementations absorb their own failures and return empty
// values, so none of these methods report errors.
type Reasoner interface {
	Embed(ctx context.Context, title, description string) []float64
	RankCandidates(ctx context.Context, itemType, fingerprint string, embedding []float64) []model.Candidate
	MaskContact(ctx context.Context, contact string) string
}

// Notifier fans a message out across channels and reports one outcome per
// channel.
type Notifier interface {
	Send(ctx context.Context, contact, message string, channels []string) map[string]string
}

// Options control the match decision and notification fan-out.
type Options struct {
	// MaxHammingDistance is the exclusive fingerprint-distance threshold:
	// strictly fewer differing bits counts as a match.
	MaxHammingDistance int
	// MinCosine is the exclusive embedding-similarity threshold: strictly
	// greater similarity counts as a match.
	MinCosine float64
	// TopK caps how many ranked candidates are notified.
	TopK int
	// Channels are the transports used for every notification.
	Channels []string
}

// DefaultOptions returns the standard thresholds: 20 bits, 0.6 cosine,
// top 3 candidates, all three channels.
func DefaultOptions() Options {
	return Options{
		MaxHammingDistance: 20,
		MinCosine:          0.6,
		TopK:               3,
		Channels:           []string{notify.ChannelSMS, notify.ChannelWhatsApp, notify.ChannelVoice},
	}
}

// IsMatch applies the permissive either-signal policy: a small fingerprint
// distance or a high embedding similarity alone is enough. A missed
// reunification is worse than a false positive a human can dismiss.
func (o Options) IsMatch(distance int, cosine float64) bool {
	return distance < o.MaxHammingDistance || cosine > o.MinCosine
}

// Report is a submitted lost-or-found report before processing.
type Report struct {
	Type        string
	Title       string
	Description string
	Contact     string
	Image       []byte
}

// Result is the caller-visible outcome of a pipeline run.
type Result struct {
	ItemID  int64               `json:"item_id"`
	Matches []model.MatchResult `json:"matches"`
}

// Coordinator orchestrates the matching pipeline. All collaborators are
// injected at construction and live for the process lifetime.
type Coordinator struct {
	store    Store
	reasoner Reasoner
	notifier Notifier
	opts     Options
	logger   *slog.Logger
}

// New creates a Coordinator.
func New(store Store, reasoner Reasoner, notifier Notifier, opts Options, logger *slog.Logger) *Coordinator {
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if len(opts.Channels) == 0 {
		opts.Channels = DefaultOptions().Channels
	}
	return &Coordinator{
		store:    store,
		reasoner: reasoner,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
	}
}

// Run processes one report through the full pipeline and returns either the
// stored item's id with zero or more candidate results, or an error.
// Failures never escape: a panic anywhere in the stages is converted into
// the returned error.
func (c *Coordinator) Run(ctx context.Context, report Report) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("pipeline failed: %v", r)
		}
	}()

	if !model.ValidType(report.Type) {
		return nil, fmt.Errorf("invalid report type %q", report.Type)
	}

	// Stage 1: decode and fingerprint. A decode failure aborts the run
	// before anything is persisted.
	img, err := imaging.Decode(report.Image)
	if err != nil {
		return nil, err
	}
	fingerprint := imaging.Fingerprint(img)
	c.logger.Debug("computed fingerprint", "fingerprint", fingerprint)

	// Stage 2: embed. An unusable response leaves the embedding empty; the
	// record still matches on fingerprints alone.
	embedding := c.reasoner.Embed(ctx, report.Title, report.Description)
	if len(embedding) == 0 {
		c.logger.Warn("embedding unavailable, storing record without one", "title", report.Title)
	}

	// Stage 3: persist. Every report must be queryable by future uploads.
	var imageData []byte
	var imageMIME string
	if processed, perr := imaging.Process(bytes.NewReader(report.Image)); perr == nil {
		imageData = processed.Data
		imageMIME = processed.MIME
	} else {
		c.logger.Warn("image processing failed, storing record without image", "error", perr)
	}

	item := &model.Item{
		Type:             report.Type,
		Title:            report.Title,
		Description:      report.Description,
		OwnerContact:     report.Contact,
		ImageFingerprint: fingerprint,
		Embedding:        embedding,
	}
	id, err := c.store.InsertItem(ctx, item, imageData, imageMIME)
	if err != nil {
		return nil, fmt.Errorf("persisting report: %w", err)
	}

	// Stage 4: acknowledge a lost report so the owner knows it is recorded.
	if report.Type == model.TypeLost && report.Contact != "" {
		msg := fmt.Sprintf("Your item %q has been recorded. We will notify you as soon as a match is found.", report.Title)
		status := c.notifier.Send(ctx, report.Contact, msg, c.opts.Channels)
		c.logger.Info("acknowledgment dispatched", "item_id", id, "status", status)
	}

	// Stage 5: full scan of stored lost reports for a found item.
	if report.Type == model.TypeFound {
		if err := c.scanLostItems(ctx, fingerprint, embedding, report.Contact); err != nil {
			return nil, err
		}
	}

	// Stage 6: candidate ranking by the reasoning service.
	candidates := c.reasoner.RankCandidates(ctx, report.Type, fingerprint, embedding)

	// Stage 7: anonymize and notify the top candidates, in service order.
	if len(candidates) > c.opts.TopK {
		candidates = candidates[:c.opts.TopK]
	}
	matches := make([]model.MatchResult, 0, len(candidates))
	for _, candidate := range candidates {
		masked := c.reasoner.MaskContact(ctx, candidate.OwnerContact)

		status := map[string]string{}
		if candidate.OwnerContact != "" {
			msg := fmt.Sprintf("Possible match for %q. Reporter contact: %s", report.Title, report.Contact)
			status = c.notifier.Send(ctx, candidate.OwnerContact, msg, c.opts.Channels)
		}

		matches = append(matches, model.MatchResult{
			Match:         candidate,
			MaskedContact: masked,
			NotifStatus:   status,
		})
	}

	return &Result{ItemID: id, Matches: matches}, nil
}

// scanLostItems compares a new found report against every stored lost record
// and notifies the owner of each one that crosses the match threshold.
// Every submission scans the whole catalogue.
func (c *Coordinator) scanLostItems(ctx context.Context, fingerprint string, embedding []float64, finderContact string) error {
	stored, err := c.store.FetchAllItems(ctx)
	if err != nil {
		return fmt.Errorf("scanning stored reports: %w", err)
	}

	for _, lost := range stored {
		if lost.Type != model.TypeLost {
			continue
		}

		distance, derr := similarity.HammingDistance(fingerprint, lost.ImageFingerprint)
		if derr != nil {
			c.logger.Warn("fingerprint not comparable", "item_id", lost.ID, "error", derr)
		}
		cosine := similarity.Cosine(embedding, lost.Embedding)
		c.logger.Debug("compared against lost item",
			"item_id", lost.ID, "distance", distance, "similarity", cosine)

		if !c.opts.IsMatch(distance, cosine) {
			continue
		}

		c.logger.Info("match found", "item_id", lost.ID, "distance", distance, "similarity", cosine)
		msg := fmt.Sprintf("Good news! Your lost item %q might have been found. Finder contact: %s",
			lost.Title, finderContact)
		status := c.notifier.Send(ctx, lost.OwnerContact, msg, c.opts.Channels)
		c.logger.Info("owner notified", "item_id", lost.ID, "status", status)
	}
	return nil
}
