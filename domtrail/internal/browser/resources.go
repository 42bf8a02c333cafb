package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// applyResourceBlocking fails requests of the configured resource types.
// Blocking never changes which elements render, only how fast.
func applyResourceBlocking(page *rod.Page, types []string) error {
	block := blockSet(types)
	router := page.HijackRequests()
	if err := router.Add("*", "", func(h *rod.Hijack) {
		if block[resourceName(h.Request.Type())] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	}); err != nil {
		return err
	}
	go router.Run()
	return nil
}

func blockSet(types []string) map[string]bool {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return set
}

// resourceName maps CDP resource types to configuration names.
func resourceName(t proto.NetworkResourceType) string {
	switch lower := strings.ToLower(string(t)); lower {
	case "image":
		return "images"
	case "font":
		return "fonts"
	case "stylesheet":
		return "stylesheets"
	default:
		return lower
	}
}
