package stt

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	speechkit "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/stt/v3"

	"github.com/d1nch8g/pasimple/simple"
)

type fakeRecognizer struct {
	speechkit.UnimplementedRecognizerServer

	mu      sync.Mutex
	auth    []string
	options *speechkit.StreamingOptions
	audio   bytes.Buffer
	fail    error
}

func (f *fakeRecognizer) RecognizeStreaming(stream speechkit.Recognizer_RecognizeStreamingServer) error {
	md, _ := metadata.FromIncomingContext(stream.Context())
	f.mu.Lock()
	f.auth = md.Get("authorization")
	fail := f.fail
	f.mu.Unlock()
	if fail != nil {
		return fail
	}

	for {
		req, err := stream.Recv()
		if err == io.EOF {
			return stream.Send(&speechkit.StreamingResponse{
				Event: &speechkit.StreamingResponse_Final{
					Final: &speechkit.AlternativeUpdate{
						Alternatives: []*speechkit.Alternative{{Text: "turn up the volume"}},
					},
				},
			})
		}
		if err != nil {
			return err
		}

		f.mu.Lock()
		if opts := req.GetSessionOptions(); opts != nil {
			f.options = opts
		}
		if chunk := req.GetChunk(); chunk != nil {
			f.audio.Write(chunk.GetData())
		}
		f.mu.Unlock()
	}
}

func startRecognizer(t *testing.T) (*fakeRecognizer, *YandexSTTClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	fake := &fakeRecognizer{}
	speechkit.RegisterRecognizerServer(srv, fake)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.Dial("bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	client := newClient(speechkit.NewRecognizerClient(conn), conn, YandexConfig{
		IamToken: "token",
		FolderID: "folder",
		Language: "ru-RU",
	})
	t.Cleanup(func() { client.Close() })
	return fake, client
}

func TestStreamRecognize(t *testing.T) {
	fake, client := startRecognizer(t)

	audio := make(chan []byte, 4)
	results := make(chan string, 4)
	audio <- make([]byte, 320)
	audio <- make([]byte, 320)
	close(audio)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.StreamRecognize(ctx, audio, results, CaptureSpec(16000)); err != nil {
		t.Fatalf("StreamRecognize: %v", err)
	}

	var texts []string
	for text := range results {
		texts = append(texts, text)
	}
	if len(texts) != 1 || texts[0] != "turn up the volume" {
		t.Errorf("unexpected results %q", texts)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.audio.Len() != 640 {
		t.Errorf("expected 640 bytes of audio, got %d", fake.audio.Len())
	}
	if len(fake.auth) != 1 || fake.auth[0] != "Bearer token" {
		t.Errorf("unexpected authorization %q", fake.auth)
	}
	raw := fake.options.GetRecognitionModel().GetAudioFormat().GetRawAudio()
	if raw.GetSampleRateHertz() != 16000 || raw.GetAudioChannelCount() != 1 {
		t.Errorf("unexpected raw audio options %v", raw)
	}
	if langs := fake.options.GetRecognitionModel().GetLanguageRestriction().GetLanguageCode(); len(langs) != 1 || langs[0] != "ru-RU" {
		t.Errorf("unexpected languages %q", langs)
	}
}

func TestStreamRecognizeRejectsSpec(t *testing.T) {
	_, client := startRecognizer(t)

	results := make(chan string)
	spec := simple.SampleSpec{Format: simple.Float32LE, Rate: 16000, Channels: 1}
	err := client.StreamRecognize(context.Background(), nil, results, spec)
	if simple.KindOf(err) != simple.InvalidSpec {
		t.Errorf("expected InvalidSpec, got %v", err)
	}
	if _, ok := <-results; ok {
		t.Error("expected results to be closed")
	}
}

func TestStreamRecognizeDrainsAudioAfterFailure(t *testing.T) {
	fake, client := startRecognizer(t)
	fake.mu.Lock()
	fake.fail = status.Error(codes.Unauthenticated, "bad token")
	fake.mu.Unlock()

	audio := make(chan []byte)
	results := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- client.StreamRecognize(context.Background(), audio, results, CaptureSpec(16000))
	}()

	chunk := make([]byte, 320)
	timeout := time.After(5 * time.Second)
	var err error
feed:
	for {
		select {
		case audio <- chunk:
		case err = <-done:
			break feed
		case <-timeout:
			t.Fatal("StreamRecognize did not give up")
		}
	}
	if err == nil {
		t.Fatal("expected an error from a failing recognizer")
	}

	// The capture side keeps producing until it notices; it must not block.
	for range 50 {
		select {
		case audio <- chunk:
		case <-time.After(time.Second):
			t.Fatal("audio channel is no longer drained")
		}
	}
	close(audio)
}
