package audioio

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/wsvoicebridge/voxstream/pkg/transceiver"
)

// speakers ended up more complicated as it seems;
// this is because we have to:
//   - allow Playback to be stopped
//   - poll monitor the device if it's still playing
//   - protect against double-play for better ux
//
// The state flow is:
//  1. currentPlayer == nil => nothing going on
//  2. Starts grabs mutex => starting to play
//  3. Stop (or recording done) grabs mutex, interrupts the device and waits until it stops playing.
//  4. Before another Start, you either have to wait on currentDone, or call Stop().
//
// Invariant: There is at most one playerMonitorRoutine running at the same time.
//
// clock and logger are the same transceiver.Clock and zerolog.Logger the
// owning Element was built with (see transceiver.New), so playback timing
// and log lines line up with the rest of a session's traces instead of
// drifting off the wall clock and the global logger.
type speakers struct {
	otoContext *oto.Context
	clock      transceiver.Clock
	logger     zerolog.Logger

	currentPlayer *oto.Player
	currentDone   *sync.WaitGroup

	mutex    sync.Mutex // Protects currentPlayer and stopFlag
	stopFlag bool       // Indicates if playback should be stopped early
}

func NewSpeakers(sampleRate int, numChannels int, clock transceiver.Clock, logger zerolog.Logger) (OutputDevice, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: numChannels,
		Format:       oto.FormatSignedInt16LE,
	}

	// Remember that you should **not** create more than one context
	logger.Info().Msg("speakers: setting up oto player, will wait until ready")
	otoCtx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, wrapDeviceError("speakers", err, "cannot create oto context")
	}
	<-readyChan // Wait for the audio hardware to be ready (about 200ms empirically)
	logger.Info().Msg("speakers: oto context ready")

	return &speakers{
		otoContext:    otoCtx,
		clock:         clock,
		logger:        logger,
		currentPlayer: nil,
		stopFlag:      false,
	}, nil
}

// Play plays the entire stream and returns a WaitGroup if a routine wants
// to block until done. Cancelling ctx pauses and closes the player
// cooperatively, the same way an explicit Stop() call does.
func (s *speakers) Play(ctx context.Context, audioOutput io.Reader) (*sync.WaitGroup, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.currentPlayer != nil {
		return nil, wrapDeviceError("speakers", errors.New("currentPlayer isn't nil"), "play called before a prior Stop")
	}

	// Refresh state
	s.currentDone = &sync.WaitGroup{}
	s.currentDone.Add(1)

	s.currentPlayer = s.otoContext.NewPlayer(audioOutput)
	s.currentPlayer.Play()

	// Monitors and properly stops / closes the player when so decided.
	// Invariant: There is at most one playerMonitorRoutine running at the same time.
	go s.playerMonitorRoutine(ctx)

	return s.currentDone, nil
}

// Stop, TODO: needs more battle-testing
func (s *speakers) Stop() error {
	s.mutex.Lock()

	if s.stopFlag {
		s.mutex.Unlock()
		// This can only really happen if multiple callers request Stop in a very brief period.
		return wrapDeviceError("speakers", errors.New("double-stop called"), "stop")
	}

	if s.currentPlayer == nil {
		s.logger.Debug().Msg("speakers: currentPlayer is already stopped")
		s.mutex.Unlock()
		return nil
	}

	s.logger.Debug().Msg("speakers: currentPlayer is stopping ...")
	s.stopFlag = true
	s.currentPlayer.Pause()
	untilStopped := s.currentDone // we copy it over as it can become nil otherwise
	s.mutex.Unlock()

	untilStopped.Wait()
	return nil
}

func (s *speakers) playerMonitorRoutine(ctx context.Context) {
	s.logger.Debug().Msg("speakers: playerMonitorRoutine start")
	// Signal that the current playback has finished and we ready for the next one
	defer s.currentDone.Done()

	startTime := s.clock.Now()
	for {
		s.mutex.Lock()
		playing := s.currentPlayer.IsPlaying()
		stop := s.stopFlag
		s.mutex.Unlock()

		if !playing || stop {
			break
		}

		select {
		case <-ctx.Done():
			s.mutex.Lock()
			s.stopFlag = true
			s.currentPlayer.Pause()
			s.mutex.Unlock()
		case <-time.After(time.Millisecond):
		}
	}

	// NOTE: It's fine to have an unlocked passage here, as the only currentPlayer = nil is below.
	s.mutex.Lock()
	if err := s.currentPlayer.Close(); err != nil {
		s.logger.Error().Err(err).Msg("speakers: player.Close failed")
	}
	s.currentPlayer = nil

	s.currentDone = nil
	s.stopFlag = false

	s.mutex.Unlock()

	s.logger.Debug().Dur("playback_duration", s.clock.Now()-startTime).Msg("speakers: current playback done playerMonitorRoutine")
}
