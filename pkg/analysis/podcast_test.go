package analysis

import (
	"context"
	"errors"
	"testing"
)

func TestGeneratePodcast(t *testing.T) {
	stub := newStub()
	speech := &stubSpeech{audio: []byte{1, 2, 3, 4}}
	p := New(stub, speech, nil, testGateway(), testConfig(), nil)
	if err := p.Start(context.Background(), sourceText(1000)); err != nil {
		t.Fatal(err)
	}
	waitDone(t, p)

	pod, err := p.GeneratePodcast(context.Background())
	if err != nil {
		t.Fatalf("GeneratePodcast: %v", err)
	}
	if pod.Title == "" || len(pod.Script) == 0 {
		t.Errorf("incomplete podcast: %+v", pod)
	}
	if len(pod.Audio) == 0 {
		t.Error("audio should be attached when synthesis succeeds")
	}
	if p.Snapshot().Podcast == nil {
		t.Error("podcast facet not merged")
	}
}

func TestPodcastAudioFailureTolerated(t *testing.T) {
	stub := newStub()
	speech := &stubSpeech{err: errors.New("synthesis down")}
	p := New(stub, speech, nil, testGateway(), testConfig(), nil)
	if err := p.Start(context.Background(), sourceText(1000)); err != nil {
		t.Fatal(err)
	}
	waitDone(t, p)

	pod, err := p.GeneratePodcast(context.Background())
	if err != nil {
		t.Fatalf("script must survive audio failure: %v", err)
	}
	if len(pod.Script) == 0 {
		t.Error("script missing")
	}
	if pod.Audio != nil {
		t.Error("audio should be absent after synthesis failure")
	}
}

func TestPodcastScriptFailureLeavesFacetUnchanged(t *testing.T) {
	stub := newStub()
	p := New(stub, &stubSpeech{}, nil, testGateway(), testConfig(), nil)
	if err := p.Start(context.Background(), sourceText(1000)); err != nil {
		t.Fatal(err)
	}
	waitDone(t, p)

	stub.fail["podcast"] = errors.New("boom")
	if _, err := p.GeneratePodcast(context.Background()); err == nil {
		t.Fatal("want error")
	}
	if p.Snapshot().Podcast != nil {
		t.Error("facet must be unchanged after script failure")
	}
}

func TestGenerateReview(t *testing.T) {
	stub := newStub()
	p := testPipeline(stub, nil)
	if err := p.Start(context.Background(), sourceText(1000)); err != nil {
		t.Fatal(err)
	}
	waitDone(t, p)

	if err := p.GenerateReview(context.Background()); err != nil {
		t.Fatalf("GenerateReview: %v", err)
	}
	snap := p.Snapshot()
	if snap.Review == nil || snap.Review.Body == "" {
		t.Errorf("review facet missing: %+v", snap.Review)
	}
}
