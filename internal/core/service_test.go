package core

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/rescam/phishguard/internal/whitelist"
)

type stubEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	return s.vector, s.err
}

type stubSearcher struct {
	result  *RetrievalResult
	err     error
	gotTopK int
}

func (s *stubSearcher) Search(_ context.Context, _ []float32, topK int) (*RetrievalResult, error) {
	s.gotTopK = topK
	if s.err != nil {
		return nil, s.err
	}
	if s.result == nil {
		return &RetrievalResult{}, nil
	}
	return s.result, nil
}

type stubLLM struct {
	responses []func() (*Classification, error)
	contexts  []string
	calls     int
}

func (s *stubLLM) ClassifyEmail(_ context.Context, _ *Email, ragContext string) (*Classification, error) {
	s.contexts = append(s.contexts, ragContext)
	idx := s.calls
	s.calls++
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx]()
}

func okResponse(cat Category) func() (*Classification, error) {
	return func() (*Classification, error) {
		return &Classification{Category: cat, Confidence: 0.9, RecommendedAction: ActionQuarantine}, nil
	}
}

func unparsable() func() (*Classification, error) {
	return func() (*Classification, error) {
		return nil, ErrUnparsableResponse
	}
}

func testEmail() *Email {
	return &Email{
		ID:      "m1",
		From:    "attacker@evil.example",
		Subject: "Verify your account",
		Body:    "Click https://evil.example/verify",
	}
}

func newService(e Embedder, s NeighborSearcher, l LLMClient, wl *whitelist.Checker) *ClassifierService {
	return NewClassifierService(e, s, l, wl, zap.NewNop(), 5, "fallback reason")
}

func TestClassifyHappyPath(t *testing.T) {
	embedder := &stubEmbedder{vector: []float32{0.1, 0.2}}
	searcher := &stubSearcher{result: &RetrievalResult{Neighbors: []Neighbor{
		{ID: "n1", Distance: 0.1, Label: "PHISHING"},
	}}}
	llm := &stubLLM{responses: []func() (*Classification, error){okResponse(CategoryScam)}}

	svc := newService(embedder, searcher, llm, nil)
	c, err := svc.Classify(context.Background(), testEmail())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if c.Category != CategoryScam {
		t.Errorf("category = %q", c.Category)
	}
	if searcher.gotTopK != 5 {
		t.Errorf("topK = %d, want 5", searcher.gotTopK)
	}
	if llm.calls != 1 {
		t.Errorf("llm calls = %d, want 1", llm.calls)
	}
	if len(llm.contexts) != 1 || llm.contexts[0] == "" {
		t.Errorf("llm contexts = %v", llm.contexts)
	}
}

func TestClassifyWhitelistedSenderSkipsModel(t *testing.T) {
	embedder := &stubEmbedder{}
	llm := &stubLLM{responses: []func() (*Classification, error){okResponse(CategoryScam)}}
	wl := whitelist.NewChecker([]string{"trusted.example"}, zap.NewNop())

	svc := newService(embedder, &stubSearcher{}, llm, wl)
	email := testEmail()
	email.From = "friend@trusted.example"

	c, err := svc.Classify(context.Background(), email)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if c.Category != CategoryBenign || c.RecommendedAction != ActionAllow {
		t.Errorf("classification = %+v", c)
	}
	if c.ModelUsed != "whitelist" {
		t.Errorf("modelUsed = %q", c.ModelUsed)
	}
	if embedder.calls != 0 || llm.calls != 0 {
		t.Errorf("whitelisted sender should bypass embed and model, got embed=%d llm=%d", embedder.calls, llm.calls)
	}
}

func TestClassifyReAsksOnceOnUnparsableResponse(t *testing.T) {
	llm := &stubLLM{responses: []func() (*Classification, error){
		unparsable(),
		okResponse(CategorySuspicious),
	}}

	svc := newService(&stubEmbedder{vector: []float32{1}}, &stubSearcher{}, llm, nil)
	c, err := svc.Classify(context.Background(), testEmail())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if llm.calls != 2 {
		t.Errorf("llm calls = %d, want 2", llm.calls)
	}
	if c.Category != CategorySuspicious {
		t.Errorf("category = %q", c.Category)
	}
}

func TestClassifyFallsBackAfterSecondUnparsableResponse(t *testing.T) {
	llm := &stubLLM{responses: []func() (*Classification, error){unparsable()}}

	svc := newService(&stubEmbedder{vector: []float32{1}}, &stubSearcher{}, llm, nil)
	c, err := svc.Classify(context.Background(), testEmail())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if llm.calls != 2 {
		t.Errorf("llm calls = %d, want 2", llm.calls)
	}
	if c.Category != CategorySuspicious || c.Confidence != 0.2 {
		t.Errorf("fallback = %+v", c)
	}
	if c.PrimaryReason != "fallback reason" {
		t.Errorf("reason = %q", c.PrimaryReason)
	}
}

func TestClassifyPropagatesEmbedError(t *testing.T) {
	wantErr := errors.New("embedding service down")
	svc := newService(&stubEmbedder{err: wantErr}, &stubSearcher{}, &stubLLM{}, nil)

	if _, err := svc.Classify(context.Background(), testEmail()); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want embed error", err)
	}
}

func TestClassifyPropagatesSearchError(t *testing.T) {
	wantErr := errors.New("index unavailable")
	svc := newService(&stubEmbedder{vector: []float32{1}}, &stubSearcher{err: wantErr}, &stubLLM{}, nil)

	if _, err := svc.Classify(context.Background(), testEmail()); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want search error", err)
	}
}

func TestClassifyPropagatesModelError(t *testing.T) {
	wantErr := errors.New("rate limited")
	llm := &stubLLM{responses: []func() (*Classification, error){
		func() (*Classification, error) { return nil, wantErr },
	}}

	svc := newService(&stubEmbedder{vector: []float32{1}}, &stubSearcher{}, llm, nil)
	if _, err := svc.Classify(context.Background(), testEmail()); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want model error", err)
	}
	if llm.calls != 1 {
		t.Errorf("llm calls = %d, non-parse errors should not re-ask", llm.calls)
	}
}
