package disks

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Pseudo-device name prefixes that are never flash targets.
var pseudoPrefixes = []string{"loop", "ram"}

// Descriptor summarises one candidate block device.
type Descriptor struct {
	Name  string `yaml:"name"`
	Size  string `yaml:"size"`
	Model string `yaml:"model"`
}

// NoDisks is returned alone when the listing succeeded but found nothing
// usable. It is not a device.
var NoDisks = Descriptor{Name: "No disks found"}

func (d Descriptor) IsPlaceholder() bool {
	return d == NoDisks
}

// Label is the text shown in selection lists.
func (d Descriptor) Label() string {
	if d.IsPlaceholder() {
		return d.Name
	}
	return fmt.Sprintf("%s (%s) - %s", d.Name, d.Size, d.Model)
}

// Runner runs the listing command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

type Lister struct {
	command string
	run     Runner
	logChan chan<- string
}

// NewLister lists disks with command (normally "lsblk"). logChan may be nil.
func NewLister(command string, logChan chan<- string) *Lister {
	if command == "" {
		command = "lsblk"
	}
	return &Lister{command: command, run: execRunner, logChan: logChan}
}

// WithRunner replaces how the listing command is executed.
func (l *Lister) WithRunner(run Runner) *Lister {
	l.run = run
	return l
}

func (l *Lister) log(message string) {
	if l.logChan != nil {
		l.logChan <- message
	}
}

// List returns the real disks, or just NoDisks if there are none. A failed
// listing is an error, never the placeholder.
func (l *Lister) List(ctx context.Context) ([]Descriptor, error) {
	out, err := l.run(ctx, l.command, "-d", "-n", "-o", "NAME,SIZE,MODEL")
	if err != nil {
		return nil, fmt.Errorf("failed to list disks: %w", err)
	}

	found := Parse(out)
	l.log(fmt.Sprintf("Found %d disk(s)", len(found)))
	if len(found) == 0 {
		return []Descriptor{NoDisks}, nil
	}
	return found, nil
}

// Parse reads whitespace separated NAME SIZE MODEL... rows. Rows with fewer
// than two fields and pseudo-devices are skipped.
func Parse(out []byte) []Descriptor {
	var result []Descriptor

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if isPseudo(fields[0]) {
			continue
		}

		model := "Unknown"
		if len(fields) > 2 {
			model = strings.Join(fields[2:], " ")
		}
		result = append(result, Descriptor{Name: fields[0], Size: fields[1], Model: model})
	}
	return result
}

func isPseudo(name string) bool {
	for _, p := range pseudoPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
