// Package linescan reads barcodes from hardware scanners that present
// themselves as serial devices and send one code per line, such as USB
// scanners in CDC-ACM mode.
package linescan

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/vbonduro/fridgescan/internal/camera"
)

// ErrChecksum marks a line whose GS1 check digit does not match.
var ErrChecksum = errors.New("check digit mismatch")

type Scanner struct {
	pattern string
	glob    func(pattern string) ([]string, error)
	open    func(name string) (io.ReadCloser, error)
}

// New returns a scanner over every device path matching pattern, for
// example "/dev/ttyACM*".
func New(pattern string) *Scanner {
	return &Scanner{
		pattern: pattern,
		glob:    filepath.Glob,
		open: func(name string) (io.ReadCloser, error) {
			return os.OpenFile(name, os.O_RDONLY, 0)
		},
	}
}

func (s *Scanner) Supported() bool {
	return s.pattern != ""
}

// SecureContext is always true: the device is attached to this host.
func (s *Scanner) SecureContext() bool {
	return true
}

// RequestAccess succeeds when at least one matching device can be opened,
// or when none exist (listing then reports the missing camera). It fails
// with camera.ErrPermissionDenied when every device refuses access.
func (s *Scanner) RequestAccess(ctx context.Context) error {
	paths, err := s.paths()
	if err != nil {
		return err
	}

	var denied int
	for _, p := range paths {
		f, err := s.open(p)
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				denied++
			}
			continue
		}
		_ = f.Close()
		return nil
	}
	if len(paths) > 0 && denied == len(paths) {
		return fmt.Errorf("%w: %s", camera.ErrPermissionDenied, s.pattern)
	}
	return nil
}

func (s *Scanner) VideoInputs(ctx context.Context) ([]camera.Device, error) {
	paths, err := s.paths()
	if err != nil {
		return nil, err
	}
	devices := make([]camera.Device, 0, len(paths))
	for _, p := range paths {
		devices = append(devices, camera.Device{ID: p, Label: filepath.Base(p)})
	}
	return devices, nil
}

func (s *Scanner) paths() ([]string, error) {
	paths, err := s.glob(s.pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: bad device pattern %q: %v", camera.ErrUnsupported, s.pattern, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Start opens deviceID and reports each line as a decode attempt. Blank
// lines count as empty attempts; lines that are not valid product codes are
// reported as errors. The device is closed when ctx is cancelled, and the
// returned channel yields nil at end of input.
func (s *Scanner) Start(ctx context.Context, deviceID string, fn func(code string, err error)) (<-chan error, error) {
	f, err := s.open(deviceID)
	if err != nil {
		return nil, mapOpenError(err)
	}

	done := make(chan error, 1)
	stop := context.AfterFunc(ctx, func() { _ = f.Close() })

	go func() {
		defer stop()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if ctx.Err() != nil {
				break
			}
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				fn("", camera.ErrNothingFound)
				continue
			}
			if err := ValidateCode(line); err != nil {
				fn("", err)
				continue
			}
			fn(line, nil)
		}

		switch {
		case ctx.Err() != nil:
			done <- ctx.Err()
		case sc.Err() != nil:
			done <- fmt.Errorf("%w: %v", camera.ErrAborted, sc.Err())
		default:
			_ = f.Close()
			done <- nil
		}
	}()

	return done, nil
}

func mapOpenError(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", camera.ErrPermissionDenied, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", camera.ErrNoDevice, err)
	case errors.Is(err, syscall.EBUSY):
		return fmt.Errorf("%w: %v", camera.ErrDeviceBusy, err)
	default:
		return err
	}
}

// ValidateCode accepts EAN-8, UPC-A, EAN-13 and GTIN-14 codes with a valid
// GS1 check digit.
func ValidateCode(code string) error {
	if len(code) < 8 || len(code) > 14 {
		return fmt.Errorf("invalid code %q: want 8 to 14 digits", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return fmt.Errorf("invalid code %q: not numeric", code)
		}
	}
	if checkDigit(code[:len(code)-1]) != code[len(code)-1]-'0' {
		return fmt.Errorf("invalid code %q: %w", code, ErrChecksum)
	}
	return nil
}

// checkDigit computes the GS1 check digit for body: weights alternate 3,1
// starting from the rightmost digit.
func checkDigit(body string) byte {
	sum := 0
	for i := 0; i < len(body); i++ {
		d := int(body[len(body)-1-i] - '0')
		if i%2 == 0 {
			d *= 3
		}
		sum += d
	}
	return byte((10 - sum%10) % 10)
}
