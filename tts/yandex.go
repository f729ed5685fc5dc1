package tts

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"

	tts "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"
)

const (
	YandexTTSEndpoint = "tts.api.cloud.yandex.net:443"
)

type YandexConfig struct {
	ApiKey   string
	IamToken string
	FolderID string
}

type YandexTTSClient struct {
	client   tts.SynthesizerClient
	conn     *grpc.ClientConn
	auth     string
	folderID string
}

// Ensure YandexTTSClient implements Synthesizer interface
var _ Synthesizer = (*YandexTTSClient)(nil)

func GetDefaultSynthesisOptions() SynthesisOptions {
	return SynthesisOptions{
		Voice:             "marina",
		Speed:             1.0,
		Volume:            0.0,
		Model:             "general",
		Container:         ContainerWAV,
		NormalizeLoudness: true,
	}
}

func NewYandexTTSClient(config YandexConfig) (*YandexTTSClient, error) {
	creds := credentials.NewTLS(&tls.Config{})

	conn, err := grpc.Dial(YandexTTSEndpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TTS service: %w", err)
	}

	return newClient(tts.NewSynthesizerClient(conn), conn, config), nil
}

func newClient(client tts.SynthesizerClient, conn *grpc.ClientConn, config YandexConfig) *YandexTTSClient {
	// An API key wins over an IAM token.
	auth := "Bearer " + config.IamToken
	if config.ApiKey != "" {
		auth = "Api-Key " + config.ApiKey
	}
	return &YandexTTSClient{
		client:   client,
		conn:     conn,
		auth:     auth,
		folderID: config.FolderID,
	}
}

func (c *YandexTTSClient) SynthesizeToStreamWithContext(ctx context.Context, text string, options SynthesisOptions, audioData chan<- []byte) error {
	defer close(audioData)

	ctx = metadata.AppendToOutgoingContext(ctx,
		"authorization", c.auth,
		"x-folder-id", c.folderID,
	)

	stream, err := c.client.UtteranceSynthesis(ctx, buildRequest(text, options))
	if err != nil {
		return fmt.Errorf("failed to start synthesis: %w", err)
	}

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to receive audio data: %w", err)
		}

		if data := resp.GetAudioChunk().GetData(); len(data) > 0 {
			select {
			case audioData <- data:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func containerType(c Container) tts.ContainerAudio_ContainerAudioType {
	switch c {
	case ContainerMP3:
		return tts.ContainerAudio_MP3
	default:
		return tts.ContainerAudio_WAV
	}
}

func buildRequest(text string, options SynthesisOptions) *tts.UtteranceSynthesisRequest {
	req := &tts.UtteranceSynthesisRequest{}
	req.SetModel(options.Model)
	req.SetText(text)

	voiceHint := &tts.Hints{}
	voiceHint.SetVoice(options.Voice)
	speedHint := &tts.Hints{}
	speedHint.SetSpeed(options.Speed)
	volumeHint := &tts.Hints{}
	volumeHint.SetVolume(options.Volume)
	req.SetHints([]*tts.Hints{voiceHint, speedHint, volumeHint})

	containerAudio := &tts.ContainerAudio{}
	containerAudio.SetContainerAudioType(containerType(options.Container))
	audioSpec := &tts.AudioFormatOptions{}
	audioSpec.SetContainerAudio(containerAudio)
	req.SetOutputAudioSpec(audioSpec)

	if options.NormalizeLoudness {
		req.SetLoudnessNormalizationType(tts.UtteranceSynthesisRequest_LUFS)
	} else {
		req.SetLoudnessNormalizationType(tts.UtteranceSynthesisRequest_MAX_PEAK)
	}
	return req
}

func (c *YandexTTSClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
