package connections

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/linkedge-backend/pkg/config"
)

// ReRequestPolicy decides whether a requester may ask again after being
// rejected by the same target.
type ReRequestPolicy string

const (
	ReRequestAllow ReRequestPolicy = config.ReRequestAllow
	ReRequestBlock ReRequestPolicy = config.ReRequestBlock
)

func ParseReRequestPolicy(value string) (ReRequestPolicy, error) {
	switch ReRequestPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", ReRequestAllow:
		return ReRequestAllow, nil
	case ReRequestBlock:
		return ReRequestBlock, nil
	default:
		return "", fmt.Errorf("unknown re-request policy %q", value)
	}
}
