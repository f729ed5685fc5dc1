// Package simple is a blocking client for an audio server's simple
// playback and capture API.
//
// A stream is opened against a Server, moves PCM frames with blocking Write
// or Read calls and is released with Close:
//
//	p, err := simple.OpenPlayback(ctx, srv, "music", simple.SampleSpec{
//		Format:   simple.S16LE,
//		Rate:     44100,
//		Channels: 2,
//	})
//	if err != nil {
//		return err
//	}
//	defer p.Close()
//
//	if _, err := p.Write(pcm); err != nil {
//		return err
//	}
//	return p.Drain()
//
// Every failure is an *Error carrying an ErrorKind. Handles move through
// Created, Open, Draining, Failed and Closed; operations on a handle that is
// not open return InvalidState.
package simple
