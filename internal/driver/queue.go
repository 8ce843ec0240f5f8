package driver

import (
	"context"
	"strings"
	"time"
)

// Start launches the background queue loop. Each tick refreshes task
// statuses from the remote service, pops the head of the queue once it
// is terminal, and submits it when it is still pending. The loop never
// stops on error; failures are logged and the next tick retries.
func (d *Driver) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(d.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.stopped:
				return
			case <-ticker.C:
				d.tick(ctx)
			}
		}
	}()
}

// Stop terminates the queue loop
func (d *Driver) Stop() {
	d.stopOnce.Do(func() { close(d.stopped) })
}

func (d *Driver) tick(ctx context.Context) {
	if err := d.refreshStatuses(ctx); err != nil {
		d.log.Warn("task status refresh failed", "error", err)
	}

	d.mu.Lock()
	if len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	head := d.pending[0]
	switch {
	case head.Terminal():
		d.pending = d.pending[1:]
		d.mu.Unlock()
	case head.Message == MessagePending:
		head.Message = MessageInProgress
		d.mu.Unlock()
		d.submit(head)
	default:
		// still in progress; defer to the next tick
		d.mu.Unlock()
	}
}

// refreshStatuses folds remote task records into the queued tasks they
// correspond to, matching through the remote-id mapping recorded at
// write time.
func (d *Driver) refreshStatuses(ctx context.Context) error {
	items, err := d.client.GetTasks(ctx)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, item := range items {
		remoteID, _ := item["id"].(string)
		stableID := remoteID
		if mapped, ok := d.taskIDs[remoteID]; ok {
			stableID = mapped
		}
		for _, task := range d.pending {
			if task.ID == "" || task.ID != stableID {
				continue
			}
			message, code := aggregateResults(item)
			if message != "" && message != MessageInProgress {
				task.Message = message
				if code != 0 {
					task.Code = code
				}
			}
		}
	}
	return nil
}

// GetTasks reports every known task: the remote records translated
// through the declaration-id correlation, plus queued and errored local
// tasks the server has not seen yet.
func (d *Driver) GetTasks(ctx context.Context) ([]Task, error) {
	items, err := d.client.GetTasks(ctx)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Task, 0, len(items)+len(d.pending)+len(d.errored))
	seen := make(map[string]struct{})
	for _, item := range items {
		task := d.taskFromRemote(item)
		seen[task.ID] = struct{}{}
		out = append(out, task)
	}
	for _, task := range d.pending {
		if _, dup := seen[task.ID]; task.ID != "" && dup {
			continue
		}
		out = append(out, *task)
	}
	for _, task := range d.errored {
		if _, dup := seen[task.ID]; task.ID != "" && dup {
			continue
		}
		out = append(out, *task)
	}
	return out, nil
}

// taskFromRemote translates a raw remote task record. The semantic
// operation comes back out of the embedded declaration identifier; the
// record itself carries no caller metadata. Caller holds d.mu.
func (d *Driver) taskFromRemote(item map[string]interface{}) Task {
	remoteID, _ := item["id"].(string)
	stableID := remoteID
	if mapped, ok := d.taskIDs[remoteID]; ok {
		stableID = mapped
	}

	var declID DeclarationID
	declID.Operation = OpUnknown
	if decl, ok := item["declaration"].(map[string]interface{}); ok {
		if raw, ok := decl["id"].(string); ok {
			declID = ParseDeclarationID(raw)
		}
	}

	message, code := aggregateResults(item)
	if message == "" {
		message = MessageInProgress
	}
	if code == 0 {
		code = 202
	}

	task := Task{
		ID:          stableID,
		Code:        code,
		Message:     message,
		Operation:   declID.Operation,
		Tenant:      declID.Tenant,
		Application: declID.Application,
		Host:        d.host,
	}
	if task.Message == MessageInProgress {
		// observation time, for callers watching long-running changes
		task.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return task
}

// aggregateResults reduces a remote record's result entries to one
// human-readable message and a status code. Repeated messages,
// responses, and errors collapse as sets and join with newlines.
func aggregateResults(item map[string]interface{}) (string, int) {
	results, _ := item["results"].([]interface{})
	if len(results) == 0 {
		return "", 0
	}

	var code int
	seen := make(map[string]struct{})
	var lines []string
	add := func(line string) {
		if line == "" {
			return
		}
		if _, dup := seen[line]; dup {
			return
		}
		seen[line] = struct{}{}
		lines = append(lines, line)
	}

	for _, raw := range results {
		result, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if code == 0 {
			if c, ok := result["code"].(float64); ok {
				code = int(c)
			}
		}
		if message, ok := result["message"].(string); ok {
			add(message)
		}
		if response, ok := result["response"].(string); ok {
			add(response)
		}
		if errs, ok := result["errors"].([]interface{}); ok {
			for _, e := range errs {
				if s, ok := e.(string); ok {
					add(s)
				}
			}
		}
	}
	return strings.Join(lines, "\n"), code
}
