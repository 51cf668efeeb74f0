package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/rafabd1/Nightshade/internal/config"
)

// Verdict is the classified outcome of testing one candidate.
// SUCCESS is terminal for the whole run; all others are informational.
type Verdict string

const (
	VerdictSuccess  Verdict = "SUCCESS"
	VerdictExpired  Verdict = "EXPIRED"
	VerdictUsed     Verdict = "USED"
	VerdictLimited  Verdict = "LIMITED"
	VerdictUnknown  Verdict = "UNKNOWN"
	VerdictNotFound Verdict = "NOTFOUND"
	VerdictError    Verdict = "ERROR"
)

// Verdicts returns all verdicts in report order.
func Verdicts() []Verdict {
	return []Verdict{VerdictSuccess, VerdictExpired, VerdictUsed, VerdictLimited, VerdictUnknown, VerdictNotFound, VerdictError}
}

// Classification is the full classifier output. BlockSignal marks responses
// that feed the throttle's block counter; Timeout marks transport errors
// that feed its timeout counter.
type Classification struct {
	Verdict     Verdict
	BlockSignal bool
	Timeout     bool
	Detail      string
}

// Classifier maps raw HTTP outcomes to verdicts using an ordered rule table.
// It performs no I/O and holds no mutable state; Classify is a pure total
// function over its inputs.
type Classifier struct {
	rules config.MarkerRules

	// lower-cased marker copies, precomputed once
	success, used, expired, cap, notFound, block []string
}

// NewClassifier builds a classifier for the given marker rules.
func NewClassifier(rules config.MarkerRules) *Classifier {
	return &Classifier{
		rules:    rules,
		success:  lowerAll(rules.Success),
		used:     lowerAll(rules.Used),
		expired:  lowerAll(rules.Expired),
		cap:      lowerAll(rules.CapReached),
		notFound: lowerAll(rules.NotFound),
		block:    lowerAll(rules.Block),
	}
}

// Classify evaluates the rule table top to bottom and returns the first
// matching verdict, defaulting to UNKNOWN.
func (c *Classifier) Classify(status int, body []byte, header http.Header) Classification {
	lowerBody := bytes.ToLower(body)

	if status == http.StatusNotFound {
		return Classification{Verdict: VerdictNotFound, Detail: "HTTP 404"}
	}
	if status == http.StatusTooManyRequests {
		return Classification{Verdict: VerdictLimited, BlockSignal: true, Detail: "HTTP 429"}
	}
	if status == http.StatusForbidden {
		for _, name := range c.rules.EdgeHeaders {
			if header.Get(name) != "" {
				return Classification{Verdict: VerdictLimited, BlockSignal: true, Detail: fmt.Sprintf("HTTP 403 with edge header %s", name)}
			}
		}
	}
	if marker, ok := matchMarker(lowerBody, c.block); ok {
		return Classification{Verdict: VerdictLimited, BlockSignal: true, Detail: fmt.Sprintf("block marker %q", marker)}
	}

	if status == http.StatusOK {
		if marker, ok := matchMarker(lowerBody, c.used); ok {
			return Classification{Verdict: VerdictUsed, Detail: fmt.Sprintf("marker %q", marker)}
		}
		if marker, ok := matchMarker(lowerBody, c.expired); ok {
			return Classification{Verdict: VerdictExpired, Detail: fmt.Sprintf("marker %q", marker)}
		}
		if marker, ok := matchMarker(lowerBody, c.cap); ok {
			return Classification{Verdict: VerdictLimited, Detail: fmt.Sprintf("usage cap marker %q", marker)}
		}
		if marker, ok := matchMarker(lowerBody, c.notFound); ok {
			return Classification{Verdict: VerdictNotFound, Detail: fmt.Sprintf("marker %q", marker)}
		}
		if marker, ok := matchMarker(lowerBody, c.success); ok {
			return Classification{Verdict: VerdictSuccess, Detail: fmt.Sprintf("marker %q", marker)}
		}
	}

	return Classification{Verdict: VerdictUnknown, Detail: fmt.Sprintf("HTTP %d, no marker matched", status)}
}

// ClassifyError maps a transport-level failure to ERROR, flagging
// timeout-class errors for the throttle's timeout counter.
func (c *Classifier) ClassifyError(err error) Classification {
	cls := Classification{Verdict: VerdictError, Detail: shortError(err)}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		cls.Timeout = true
		cls.Detail = "request timeout: " + cls.Detail
	}
	return cls
}

func matchMarker(lowerBody []byte, markers []string) (string, bool) {
	for _, m := range markers {
		if m != "" && bytes.Contains(lowerBody, []byte(m)) {
			return m, true
		}
	}
	return "", false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func shortError(err error) string {
	msg := err.Error()
	if len(msg) > 120 {
		msg = msg[:120]
	}
	return msg
}
