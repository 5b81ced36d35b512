package backend

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/rshade/graphbatch/internal/logging"
)

var versionPattern = regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?)`)

// VersionInfo is the result of a version check.
type VersionInfo struct {
	Command    string
	Version    *semver.Version
	Constraint string
	Raw        string
}

// ParseVersion extracts the first semantic version from backend output.
func ParseVersion(output string) (*semver.Version, error) {
	m := versionPattern.FindStringSubmatch(output)
	if m == nil {
		return nil, fmt.Errorf("%w from output %q", ErrVersionUnknown, firstLine(output))
	}
	v, err := semver.NewVersion(m[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVersionUnknown, err)
	}
	return v, nil
}

// CheckVersion runs the backend with VersionArgs, parses the reported version
// and checks it against VersionConstraint when one is configured.
func (b *ExecBackend) CheckVersion(ctx context.Context) (*VersionInfo, error) {
	log := logging.ComponentLogger(*logging.FromContext(ctx), "backend")

	args := b.opts.VersionArgs
	if len(args) == 0 {
		args = []string{"--version"}
	}

	stdout, stderr, err := b.runner().Run(ctx, "", b.opts.Command, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, FailedError(err, string(stderr))
	}

	// Some JVM tools print their banner on stderr.
	raw := strings.TrimSpace(string(stdout) + "\n" + string(stderr))
	v, err := ParseVersion(raw)
	if err != nil {
		return nil, err
	}

	info := &VersionInfo{Command: b.opts.Command, Version: v, Constraint: b.opts.VersionConstraint, Raw: raw}
	if b.opts.VersionConstraint != "" {
		c, cErr := semver.NewConstraint(b.opts.VersionConstraint)
		if cErr != nil {
			return info, fmt.Errorf("parsing version constraint %q: %w", b.opts.VersionConstraint, cErr)
		}
		if !c.Check(v) {
			return info, fmt.Errorf("%w: %s %s does not satisfy %s",
				ErrVersionMismatch, b.opts.Command, v, b.opts.VersionConstraint)
		}
	}

	log.Debug().
		Ctx(ctx).
		Str("operation", "version").
		Str("command", b.opts.Command).
		Str("version", v.String()).
		Msg("backend version detected")

	return info, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
