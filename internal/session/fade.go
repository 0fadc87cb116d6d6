package session

import (
	"context"
	"fmt"
	"time"

	"github.com/nixcodex/ls9/internal/sysex"
	"github.com/nixcodex/ls9/sdk/contracts"
	"golang.org/x/sync/errgroup"
)

// Fade moves an integer parameter from its current value to target over d,
// writing an interpolated value every fade step. The last write is always
// target itself.
func (s *Session) Fade(ctx context.Context, addr contracts.Address, target int32, d time.Duration) error {
	def := s.codec.Schema.Lookup(addr.Element)
	if def.Kind != contracts.KindInteger {
		return fmt.Errorf("%w: cannot fade %s parameter %s", contracts.ErrInvalidValue, def.Kind, def.Name)
	}
	if err := def.Check(contracts.IntValue(target)); err != nil {
		return err
	}

	start, err := s.Read(ctx, addr)
	if err != nil {
		return err
	}
	from := start.Int()

	s.log.Debug("Starting fade",
		s.log.Field().String("address", addr.String()),
		s.log.Field().Int64("from", int64(from)),
		s.log.Field().Int64("to", int64(target)),
		s.log.Field().Duration("duration", d),
	)

	last := from
	if d > 0 && from != target {
		ticker := time.NewTicker(s.cfg.FadeStep)
		defer ticker.Stop()
		begin := time.Now()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			elapsed := time.Since(begin)
			if elapsed >= d {
				break
			}
			v := lerp(from, target, float64(elapsed)/float64(d))
			if v == last {
				continue
			}
			if err := s.Write(ctx, addr, contracts.IntValue(v)); err != nil {
				return err
			}
			last = v
		}
	}

	if last == target && d > 0 {
		return nil
	}
	return s.Write(ctx, addr, contracts.IntValue(target))
}

// lerp interpolates between from and to, clamped to the segment.
func lerp(from, to int32, t float64) int32 {
	switch {
	case t <= 0:
		return from
	case t >= 1:
		return to
	}
	v := int64(from) + int64(float64(int64(to)-int64(from))*t)
	lo, hi := int64(from), int64(to)
	if lo > hi {
		lo, hi = hi, lo
	}
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return int32(v)
}

// ChannelName reads the six character display name of channel.
func (s *Session) ChannelName(ctx context.Context, channel int) (string, error) {
	var parts [2]int32
	g, gctx := errgroup.WithContext(ctx)
	for i := range parts {
		addr := contracts.Address{Element: contracts.ElementChannelName, Index: i, Channel: channel}
		g.Go(func() error {
			v, err := s.Read(gctx, addr)
			if err != nil {
				return err
			}
			parts[i] = v.Int()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return sysex.UnpackName(parts[0], parts[1]), nil
}
