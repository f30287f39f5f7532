package report

import "sync"

// Recorder keeps the commands in memory.
type Recorder struct {
	mu       sync.Mutex
	commands []Command
}

// Emit stores the command.
func (r *Recorder) Emit(cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands = append(r.commands, cmd)

	return nil
}

// Commands returns the commands recorded so far.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()

	commands := make([]Command, len(r.commands))
	copy(commands, r.commands)

	return commands
}

// Names returns the command names recorded so far.
func (r *Recorder) Names() []string {
	commands := r.Commands()

	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = c.Command
	}

	return names
}
