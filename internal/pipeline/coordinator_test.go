package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"github.com/HarshS99/lostandfound/internal/db"
	"github.com/HarshS99/lostandfound/internal/imaging"
	"github.com/HarshS99/lostandfound/internal/model"
	"github.com/HarshS99/lostandfound/internal/store"
)

type fakeReasoner struct {
	embedding  []float64
	candidates []model.Candidate
	mask       string
	panics     bool
}

func (r *fakeReasoner) Embed(ctx context.Context, title, description string) []float64 {
	if r.panics {
		panic("reasoner exploded")
	}
	return r.embedding
}

func (r *fakeReasoner) RankCandidates(ctx context.Context, itemType, fingerprint string, embedding []float64) []model.Candidate {
	return r.candidates
}

func (r *fakeReasoner) MaskContact(ctx context.Context, contact string) string {
	return r.mask
}

type sentMessage struct {
	contact  string
	message  string
	channels []string
}

type fakeNotifier struct {
	sent []sentMessage
}

func (n *fakeNotifier) Send(ctx context.Context, contact, message string, channels []string) map[string]string {
	n.sent = append(n.sent, sentMessage{contact: contact, message: message, channels: channels})
	results := make(map[string]string, len(channels))
	for _, ch := range channels {
		results[ch] = "sent (ref: TEST)"
	}
	return results
}

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for x := 0; x < 64; x++ {
		for y := 0; y < 64; y++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func newTestCoordinator(t *testing.T, reasoner *fakeReasoner) (*Coordinator, *store.Items, *fakeNotifier) {
	t.Helper()
	items := &store.Items{DB: db.NewTestDB(t)}
	notifier := &fakeNotifier{}
	coordinator := New(items, reasoner, notifier, DefaultOptions(), slog.New(slog.DiscardHandler))
	return coordinator, items, notifier
}

// flipBits returns the fingerprint with its lowest n bits inverted.
func flipBits(t *testing.T, fingerprint string, n int) string {
	t.Helper()
	v, err := strconv.ParseUint(fingerprint, 16, 64)
	if err != nil {
		t.Fatalf("parsing fingerprint %q: %v", fingerprint, err)
	}
	mask := uint64(1)<<n - 1
	return fmt.Sprintf("%016x", v^mask)
}

func TestIsMatchThresholds(t *testing.T) {
	opts := DefaultOptions()

	cases := []struct {
		name     string
		distance int
		cosine   float64
		want     bool
	}{
		{"both signals weak", 40, 0.1, false},
		{"distance just under threshold", 19, 0.0, true},
		{"distance at threshold", 20, 0.0, false},
		{"cosine just over threshold", 64, 0.61, true},
		{"cosine at threshold", 64, 0.6, false},
		{"both strong", 0, 1.0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := opts.IsMatch(tc.distance, tc.cosine); got != tc.want {
				t.Errorf("IsMatch(%d, %v) = %v, want %v", tc.distance, tc.cosine, got, tc.want)
			}
		})
	}
}

func TestIsMatchMonotonic(t *testing.T) {
	opts := DefaultOptions()

	// Decreasing distance can only turn a non-match into a match.
	for d := 64; d > 0; d-- {
		if opts.IsMatch(d, 0.0) && !opts.IsMatch(d-1, 0.0) {
			t.Fatalf("match flipped off when distance improved from %d to %d", d, d-1)
		}
	}
	// Increasing cosine likewise.
	for c := 0.0; c < 1.0; c += 0.05 {
		if opts.IsMatch(64, c) && !opts.IsMatch(64, c+0.05) {
			t.Fatalf("match flipped off when cosine improved from %v", c)
		}
	}
}

func TestRunLostReportAcknowledged(t *testing.T) {
	coordinator, items, notifier := newTestCoordinator(t, &fakeReasoner{embedding: []float64{1, 0, 0}})

	result, err := coordinator.Run(context.Background(), Report{
		Type:    model.TypeLost,
		Title:   "Black Wallet",
		Contact: "+15550001111",
		Image:   testImage(t),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ItemID == 0 {
		t.Error("expected an assigned item id")
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 acknowledgment, got %d sends", len(notifier.sent))
	}
	if notifier.sent[0].contact != "+15550001111" {
		t.Errorf("acknowledgment went to %q", notifier.sent[0].contact)
	}

	stored, err := items.FetchAllItems(context.Background())
	if err != nil {
		t.Fatalf("FetchAllItems: %v", err)
	}
	if len(stored) != 1 || stored[0].Title != "Black Wallet" {
		t.Fatalf("unexpected stored items: %+v", stored)
	}
	if len(stored[0].ImageFingerprint) != 16 {
		t.Errorf("stored fingerprint %q is not 16 hex chars", stored[0].ImageFingerprint)
	}
}

func TestRunLostReportWithoutContactSkipsAck(t *testing.T) {
	coordinator, _, notifier := newTestCoordinator(t, &fakeReasoner{})

	_, err := coordinator.Run(context.Background(), Report{
		Type:  model.TypeLost,
		Title: "Umbrella",
		Image: testImage(t),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("expected no sends without a contact, got %d", len(notifier.sent))
	}
}

func TestRunFoundMatchesStoredLost(t *testing.T) {
	img := testImage(t)
	decoded, err := imaging.Decode(img)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	foundFingerprint := imaging.Fingerprint(decoded)

	coordinator, items, notifier := newTestCoordinator(t, &fakeReasoner{embedding: []float64{0.9, 0.1, 0}})

	// A lost wallet whose fingerprint is 5 bits away and whose embedding is
	// nearly parallel: both signals cross the threshold.
	_, err = items.InsertItem(context.Background(), &model.Item{
		Type:             model.TypeLost,
		Title:            "Black Wallet",
		OwnerContact:     "+15551112222",
		ImageFingerprint: flipBits(t, foundFingerprint, 5),
		Embedding:        []float64{1, 0, 0},
	}, nil, "")
	if err != nil {
		t.Fatalf("InsertItem: %v", err)
	}

	result, err := coordinator.Run(context.Background(), Report{
		Type:    model.TypeFound,
		Title:   "Wallet found near station",
		Contact: "+15553334444",
		Image:   img,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ItemID == 0 {
		t.Error("expected assigned item id")
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("expected exactly one owner notification, got %d", len(notifier.sent))
	}
	sent := notifier.sent[0]
	if sent.contact != "+15551112222" {
		t.Errorf("notification targeted %q, want the lost item's owner", sent.contact)
	}
	if !strings.Contains(sent.message, "+15553334444") {
		t.Errorf("notification should carry the finder's contact, got %q", sent.message)
	}
}

func TestRunFoundNoMatchBelowThresholds(t *testing.T) {
	coordinator, items, notifier := newTestCoordinator(t, &fakeReasoner{embedding: []float64{0, 1, 0}})

	// Orthogonal embedding and a maximally distant fingerprint.
	img := testImage(t)
	decoded, _ := imaging.Decode(img)
	fp := imaging.Fingerprint(decoded)
	v, _ := strconv.ParseUint(fp, 16, 64)
	far := fmt.Sprintf("%016x", ^v)

	_, err := items.InsertItem(context.Background(), &model.Item{
		Type:             model.TypeLost,
		Title:            "Red Scarf",
		OwnerContact:     "+15551112222",
		ImageFingerprint: far,
		Embedding:        []float64{1, 0, 0},
	}, nil, "")
	if err != nil {
		t.Fatalf("InsertItem: %v", err)
	}

	_, err = coordinator.Run(context.Background(), Report{
		Type:  model.TypeFound,
		Title: "Blue Hat",
		Image: img,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("expected no notifications for a non-match, got %d", len(notifier.sent))
	}
}

func TestRunFoundEmptyStore(t *testing.T) {
	coordinator, _, notifier := newTestCoordinator(t, &fakeReasoner{})

	result, err := coordinator.Run(context.Background(), Report{
		Type:  model.TypeFound,
		Title: "Keys",
		Image: testImage(t),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ItemID == 0 {
		t.Error("expected assigned item id")
	}
	if len(result.Matches) != 0 {
		t.Errorf("expected zero matches, got %d", len(result.Matches))
	}
	if len(notifier.sent) != 0 {
		t.Errorf("expected no notifications, got %d", len(notifier.sent))
	}
}

func TestRunEmbeddingFailureStillPersists(t *testing.T) {
	// Reasoner returns nothing usable; the record must still be stored with
	// an empty embedding.
	coordinator, items, _ := newTestCoordinator(t, &fakeReasoner{embedding: nil})

	result, err := coordinator.Run(context.Background(), Report{
		Type:  model.TypeLost,
		Title: "Phone",
		Image: testImage(t),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	stored, _ := items.FetchAllItems(context.Background())
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored item, got %d", len(stored))
	}
	if len(stored[0].Embedding) != 0 {
		t.Errorf("expected empty embedding, got %v", stored[0].Embedding)
	}
	if stored[0].ID != result.ItemID {
		t.Errorf("result id %d does not match stored id %d", result.ItemID, stored[0].ID)
	}
}

func TestRunDecodeFailureAbortsBeforePersist(t *testing.T) {
	coordinator, items, notifier := newTestCoordinator(t, &fakeReasoner{})

	_, err := coordinator.Run(context.Background(), Report{
		Type:  model.TypeLost,
		Title: "Bag",
		Image: []byte("definitely not an image"),
	})
	if err == nil {
		t.Fatal("expected error for undecodable image")
	}

	stored, _ := items.FetchAllItems(context.Background())
	if len(stored) != 0 {
		t.Errorf("nothing should be persisted after a decode failure, got %d items", len(stored))
	}
	if len(notifier.sent) != 0 {
		t.Errorf("nothing should be notified after a decode failure")
	}
}

func TestRunInvalidType(t *testing.T) {
	coordinator, _, _ := newTestCoordinator(t, &fakeReasoner{})

	_, err := coordinator.Run(context.Background(), Report{Type: "stolen", Title: "Bike", Image: testImage(t)})
	if err == nil {
		t.Fatal("expected error for invalid report type")
	}
}

func TestRunTopKCandidates(t *testing.T) {
	candidates := make([]model.Candidate, 5)
	for i := range candidates {
		candidates[i] = model.Candidate{
			ID:           int64(i + 1),
			Title:        fmt.Sprintf("Candidate %d", i+1),
			Score:        1.0 - float64(i)*0.1,
			OwnerContact: fmt.Sprintf("+1555000%04d", i),
		}
	}
	reasoner := &fakeReasoner{candidates: candidates, mask: "+1555***0000"}
	coordinator, _, notifier := newTestCoordinator(t, reasoner)

	result, err := coordinator.Run(context.Background(), Report{
		Type:    model.TypeLost,
		Title:   "Laptop",
		Contact: "+15559990000",
		Image:   testImage(t),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Matches) != 3 {
		t.Fatalf("expected top-3 truncation, got %d matches", len(result.Matches))
	}
	// Service order must be preserved, no re-ranking.
	for i, m := range result.Matches {
		if m.Match.ID != int64(i+1) {
			t.Errorf("match %d has id %d, service order not preserved", i, m.Match.ID)
		}
		if m.MaskedContact != "+1555***0000" {
			t.Errorf("match %d missing masked contact: %q", i, m.MaskedContact)
		}
		if len(m.NotifStatus) == 0 {
			t.Errorf("match %d missing notification status", i)
		}
	}

	// 1 acknowledgment + 3 candidate notifications.
	if len(notifier.sent) != 4 {
		t.Errorf("expected 4 sends, got %d", len(notifier.sent))
	}
}

func TestRunCandidateWithoutContact(t *testing.T) {
	reasoner := &fakeReasoner{candidates: []model.Candidate{{ID: 1, Title: "Watch"}}}
	coordinator, _, notifier := newTestCoordinator(t, reasoner)

	result, err := coordinator.Run(context.Background(), Report{
		Type:  model.TypeFound,
		Title: "Watch",
		Image: testImage(t),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Matches) != 1 {
		t.Fatalf("candidate without contact should still appear in results")
	}
	if len(result.Matches[0].NotifStatus) != 0 {
		t.Errorf("no notification should be attempted without a contact")
	}
	if len(notifier.sent) != 0 {
		t.Errorf("expected no sends, got %d", len(notifier.sent))
	}
}

func TestRunConvertsPanicToError(t *testing.T) {
	coordinator, _, _ := newTestCoordinator(t, &fakeReasoner{panics: true})

	_, err := coordinator.Run(context.Background(), Report{
		Type:  model.TypeLost,
		Title: "Gloves",
		Image: testImage(t),
	})
	if err == nil {
		t.Fatal("expected a panic to surface as an error")
	}
	if !strings.Contains(err.Error(), "pipeline failed") {
		t.Errorf("unexpected error: %v", err)
	}
}
