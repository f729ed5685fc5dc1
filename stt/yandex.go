package stt

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"

	speechkit "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/stt/v3"

	"github.com/d1nch8g/pasimple/simple"
)

const YandexSTTEndpoint = "stt.api.cloud.yandex.net:443"

type YandexSTTClient struct {
	client   speechkit.RecognizerClient
	conn     *grpc.ClientConn
	iamToken string
	folderID string
	language string
}

var _ STTClient = (*YandexSTTClient)(nil)

type YandexConfig struct {
	IamToken string
	FolderID string
	Language string
}

func NewYandexSTTClient(config YandexConfig) (*YandexSTTClient, error) {
	tlsConfig := &tls.Config{}
	conn, err := grpc.Dial(YandexSTTEndpoint, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Yandex STT: %w", err)
	}

	return newClient(speechkit.NewRecognizerClient(conn), conn, config), nil
}

func newClient(client speechkit.RecognizerClient, conn *grpc.ClientConn, config YandexConfig) *YandexSTTClient {
	if config.Language == "" {
		config.Language = "en-US"
	}
	return &YandexSTTClient{
		client:   client,
		conn:     conn,
		iamToken: config.IamToken,
		folderID: config.FolderID,
		language: config.Language,
	}
}

func (s *YandexSTTClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *YandexSTTClient) sessionOptions(spec simple.SampleSpec) *speechkit.StreamingRequest {
	return &speechkit.StreamingRequest{
		Event: &speechkit.StreamingRequest_SessionOptions{
			SessionOptions: &speechkit.StreamingOptions{
				RecognitionModel: &speechkit.RecognitionModelOptions{
					AudioFormat: &speechkit.AudioFormatOptions{
						AudioFormat: &speechkit.AudioFormatOptions_RawAudio{
							RawAudio: &speechkit.RawAudio{
								AudioEncoding:     speechkit.RawAudio_LINEAR16_PCM,
								SampleRateHertz:   int64(spec.Rate),
								AudioChannelCount: int64(spec.Channels),
							},
						},
					},
					TextNormalization: &speechkit.TextNormalizationOptions{
						TextNormalization: speechkit.TextNormalizationOptions_TEXT_NORMALIZATION_ENABLED,
					},
					LanguageRestriction: &speechkit.LanguageRestrictionOptions{
						RestrictionType: speechkit.LanguageRestrictionOptions_WHITELIST,
						LanguageCode:    []string{s.language},
					},
					AudioProcessingType: speechkit.RecognitionModelOptions_REAL_TIME,
				},
			},
		},
	}
}

// StreamRecognize sends audio until audioData is closed, then waits for the
// final results. If it gives up early, audioData is still drained in the
// background so its producer never blocks.
func (s *YandexSTTClient) StreamRecognize(ctx context.Context, audioData <-chan []byte, results chan<- string, spec simple.SampleSpec) error {
	sent := false
	defer func() {
		if !sent {
			discard(audioData)
		}
	}()

	if err := checkSpec(spec); err != nil {
		close(results)
		return err
	}

	md := metadata.Pairs(
		"authorization", "Bearer "+s.iamToken,
		"x-folder-id", s.folderID,
	)
	ctx = metadata.NewOutgoingContext(ctx, md)

	stream, err := s.client.RecognizeStreaming(ctx)
	if err != nil {
		close(results)
		return fmt.Errorf("failed to create streaming client: %w", err)
	}

	if err := stream.Send(s.sessionOptions(spec)); err != nil {
		close(results)
		return fmt.Errorf("failed to send session options: %w", err)
	}

	received := make(chan error, 1)
	go func() {
		defer close(results)
		for {
			resp, err := stream.Recv()
			if err == io.EOF {
				received <- nil
				return
			}
			if err != nil {
				log.Printf("stt: error receiving response: %v", err)
				received <- err
				return
			}

			for _, alternative := range resp.GetFinal().GetAlternatives() {
				if text := alternative.GetText(); text != "" {
					select {
					case results <- text:
					case <-ctx.Done():
						received <- ctx.Err()
						return
					}
				}
			}
		}
	}()

	for chunk := range audioData {
		req := &speechkit.StreamingRequest{
			Event: &speechkit.StreamingRequest_Chunk{
				Chunk: &speechkit.AudioChunk{Data: chunk},
			},
		}
		if err := stream.Send(req); err != nil {
			stream.CloseSend()
			return fmt.Errorf("failed to send audio chunk: %w", err)
		}
	}
	sent = true
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to finish audio stream: %w", err)
	}

	select {
	case err := <-received:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func discard(audioData <-chan []byte) {
	if audioData == nil {
		return
	}
	go func() {
		for range audioData {
		}
	}()
}
