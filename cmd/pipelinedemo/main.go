// Command pipelinedemo wires one synthetic input and one synthetic
// output through the compositor core, the way cmd/relay wired one real
// camera through the old single-input relay. It generates a test-card
// video frame on a fixed cadence (it registers no audio) instead of
// reading from a real RTP/WHIP/HLS/RTMP source, and logs encoded chunks
// instead of writing them to a real transport: everything upstream of
// RegisterInput and downstream of the encoder bridge is an external
// collaborator the core only ever sees through its interfaces.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avmux/compositor-core/internal/pipelineconfig"
	"github.com/avmux/compositor-core/internal/pipelog"
	"github.com/avmux/compositor-core/pkg/codecneg"
	"github.com/avmux/compositor-core/pkg/encbridge"
	"github.com/avmux/compositor-core/pkg/pipeevent"
	"github.com/avmux/compositor-core/pkg/pipeline"
	"github.com/avmux/compositor-core/pkg/videoqueue"
)

func main() {
	fs := flag.NewFlagSet("pipelinedemo", flag.ExitOnError)
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	runFor := fs.Duration("run-for", 10*time.Second, "how long to run before shutting down")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Runs the compositor core against one synthetic input and output.\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	logCfg := pipelog.NewConfig()
	level, err := pipelog.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logCfg.Level = level

	logger, err := pipelog.New(logCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Close()

	cfg := pipelineconfig.Default()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger.Info("starting compositor pipeline demo", "output_frame_rate", cfg.OutputFrameRate.FramePeriod())

	p := pipeline.New(pipeline.Options{
		TickPeriod:  cfg.SchedulerTickPeriod,
		FramePeriod: cfg.OutputFrameRate.FramePeriod(),
		AudioChunk:  20 * time.Millisecond,
		SampleRate:  48000,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx, cancelRun := context.WithCancel(ctx)
	go p.Run(runCtx)

	videoSrc, stopVideo := testCardSource(cfg.OutputFrameRate.FramePeriod())
	defer stopVideo()

	inputID, err := p.RegisterInput(pipeline.InputSpec{
		Required:       true,
		BufferDuration: 200 * time.Millisecond,
		Gain:           1.0,
		VideoSource:    videoSrc,
	})
	if err != nil {
		logger.Error("failed to register synthetic input", "err", err)
		os.Exit(1)
	}
	logger.Info("registered synthetic input", "input_id", inputID)

	outputID, err := p.RegisterOutput(pipeline.OutputSpec{
		Renderer:        passthroughRenderer{},
		VideoPrefs:      []codecneg.VideoPreference{codecneg.VideoAny},
		VideoCaps:       []codecneg.Capability{{MimeType: "video/h264"}},
		NewVideoEncoder: func(codecneg.Capability) (encbridge.VideoEncoder, error) { return &loggingEncoder{logger: logger}, nil },
		VideoSink:       &loggingSink{logger: logger},
		EndCondition:    pipeline.EndCondition{Kind: pipeline.EndNever},
	})
	if err != nil {
		logger.Error("failed to register synthetic output", "err", err)
		os.Exit(1)
	}
	logger.Info("registered synthetic output", "output_id", outputID)

	if err := p.Start(); err != nil {
		logger.Error("failed to start pipeline", "err", err)
		os.Exit(1)
	}

	timer := time.NewTimer(*runFor)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case <-timer.C:
		logger.Info("run-for duration elapsed")
	}

	stopVideo()
	_ = p.UnregisterInput(inputID)
	_ = p.UnregisterOutput(outputID)
	cancelRun()

	logger.Info("shutdown complete")
}

// testCardSource emits one blank frame per tick and returns a stop
// function that closes the channel, mirroring how a real decoder
// signals end-of-stream to the queue.
func testCardSource(period time.Duration) (<-chan pipeevent.PipelineEvent[pipeevent.Frame], func()) {
	ch := make(chan pipeevent.PipelineEvent[pipeevent.Frame], 4)
	done := make(chan struct{})
	var closeOnce bool

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		var pts time.Duration
		for {
			select {
			case <-done:
				ch <- pipeevent.EOS[pipeevent.Frame]()
				close(ch)
				return
			case <-ticker.C:
				frame := pipeevent.Frame{
					PTS:        pts,
					Resolution: pipeevent.Resolution{Width: 640, Height: 360},
					Data:       pipeevent.PixelBuffer{Format: pipeevent.PixelFormatYUV420},
				}
				select {
				case ch <- pipeevent.Data(frame):
				default:
				}
				pts += period
			}
		}
	}()

	return ch, func() {
		if !closeOnce {
			closeOnce = true
			close(done)
		}
	}
}

// passthroughRenderer renders the first available frame in the batch
// unchanged, standing in for the external GPU compositor the core
// treats as a collaborator.
type passthroughRenderer struct{}

func (passthroughRenderer) Render(batch videoqueue.Batch, _ pipeline.Scene) (pipeevent.Frame, error) {
	for _, evt := range batch.Frames {
		if !evt.IsEOS() {
			return evt.Data, nil
		}
	}
	return pipeevent.Frame{PTS: batch.PTS}, nil
}

// loggingEncoder stands in for a real codec: it logs instead of
// producing compressed bytes.
type loggingEncoder struct {
	logger *pipelog.Logger
}

func (e *loggingEncoder) Encode(frame pipeevent.Frame, forceKeyframe bool) ([]pipeevent.EncodedOutputChunk, error) {
	e.logger.Trace(pipelog.CatEncoder, "encoded synthetic frame", "pts", frame.PTS, "keyframe", forceKeyframe)
	return []pipeevent.EncodedOutputChunk{{PTS: frame.PTS, IsKeyframe: forceKeyframe, Kind: pipeevent.ChunkKind{VideoCodec: pipeevent.VideoCodecH264}}}, nil
}

func (e *loggingEncoder) Flush() ([]pipeevent.EncodedOutputChunk, error) {
	return nil, nil
}

// loggingSink stands in for an RTPPayloadSink or MuxerSink.
type loggingSink struct {
	logger *pipelog.Logger
}

func (s *loggingSink) WriteChunk(chunk pipeevent.EncodedOutputChunk) error {
	s.logger.Trace(pipelog.CatEncoder, "wrote chunk", "pts", chunk.PTS, "keyframe", chunk.IsKeyframe)
	return nil
}

func (s *loggingSink) Close() error {
	s.logger.Info("output sink closed")
	return nil
}
