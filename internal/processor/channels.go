package processor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/glefebvre/guidepost/internal/schedule"
	"github.com/glefebvre/guidepost/internal/xmltv"
)

// parseIdentity reads the numeric identity of a channel for kind.
//
//	dvb-triplet  "network.transport.service" (':' also accepted), "dvb://" prefix ignored
//	dvb-service  "service"
//	zap2it-atsc  "major.minor" optionally followed by more dot-separated text
//	lcn          the <lcn> element, else the id
//	name         no numeric identity
func parseIdentity(kind schedule.IDKind, ch *xmltv.Channel) (schedule.Triplet, int, error) {
	id := strings.TrimSpace(ch.ID)

	switch kind {
	case schedule.KindTriplet:
		id = strings.TrimPrefix(id, "dvb://")
		parts := strings.FieldsFunc(id, func(r rune) bool { return r == '.' || r == ':' })
		if len(parts) != 3 {
			return schedule.Triplet{}, 0, fmt.Errorf("expected network.transport.service, got %q", ch.ID)
		}
		nums, err := atoiAll(parts)
		if err != nil {
			return schedule.Triplet{}, 0, err
		}
		return schedule.Triplet{Network: nums[0], Transport: nums[1], Service: nums[2]}, 0, nil

	case schedule.KindService:
		n, err := atoi(id)
		if err != nil {
			return schedule.Triplet{}, 0, err
		}
		return schedule.Triplet{Service: n}, 0, nil

	case schedule.KindATSC:
		parts := strings.FieldsFunc(id, func(r rune) bool { return r == '.' || r == '-' })
		if len(parts) < 2 {
			return schedule.Triplet{}, 0, fmt.Errorf("expected major.minor, got %q", ch.ID)
		}
		nums, err := atoiAll(parts[:2])
		if err != nil {
			return schedule.Triplet{}, 0, err
		}
		return schedule.Triplet{Transport: nums[0], Service: nums[1]}, 0, nil

	case schedule.KindLCN:
		raw := ch.LCN
		if raw == "" {
			raw = id
		}
		n, err := atoi(raw)
		if err != nil {
			return schedule.Triplet{}, 0, err
		}
		return schedule.Triplet{Service: n}, n, nil
	}

	return schedule.Triplet{}, 0, nil
}

func atoi(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("%q is negative", s)
	}
	return n, nil
}

func atoiAll(parts []string) ([]int, error) {
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := atoi(p)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// kindFor picks the identity kind from the channel's id-format attribute,
// falling back to the configured default
func kindFor(ch *xmltv.Channel, fallback schedule.IDKind) schedule.IDKind {
	if f := strings.ToLower(strings.TrimSpace(ch.IDFormat)); schedule.ValidKind(f) {
		return schedule.IDKind(f)
	}
	return fallback
}
