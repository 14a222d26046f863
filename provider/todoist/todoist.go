// Package todoist implements the Todoist task provider on top of the sync
// API. Mutations are queued as sync commands and flushed with an explicit
// commit; the local mirror is only updated after the server confirms the
// whole batch.
package todoist

import (
	"context"
	"fmt"
	"time"

	"todosync/provider"
)

// defaultListName is the well-known inbox name. The match is exact and
// case-sensitive.
const defaultListName = "Inbox"

// Provider implements provider.TaskProvider for one Todoist account.
//
// A Provider is not safe for concurrent use; callers serialize operations
// per account (the commit step is not scoped to a single object, so two
// in-flight batches could interleave).
type Provider struct {
	api     *client
	account provider.AccountInfo

	lists         []provider.TaskList
	tasks         map[string][]provider.Task // keyed by list id
	defaultListID string
}

// New constructs a Provider bound to the account. The account's credential
// must already be resolved; call Import to populate the mirror.
func New(info provider.AccountInfo, opts ...provider.Option) (*Provider, error) {
	if info.AccessToken == "" {
		return nil, fmt.Errorf("todoist: account %s has no access token", info.UID)
	}

	var options provider.Options
	for _, opt := range opts {
		opt(&options)
	}

	return &Provider{
		api:     newClient(info.AccessToken, options.BaseURL, 30*time.Second),
		account: info,
		tasks:   make(map[string][]provider.Task),
	}, nil
}

func (p *Provider) ID() string          { return p.account.UID }
func (p *Provider) Name() string        { return "Todoist" }
func (p *Provider) Description() string { return "On Todoist" }
func (p *Provider) Icon() string        { return "todoist" }
func (p *Provider) Enabled() bool       { return true }

// Import fetches all remote projects and items and rebuilds the mirror. The
// list named "Inbox" becomes the default list; without a match no default is
// set and creating un-targeted tasks fails.
func (p *Provider) Import(ctx context.Context) error {
	sr, err := p.api.read(ctx)
	if err != nil {
		return fmt.Errorf("todoist import: %w", err)
	}

	lists := make([]provider.TaskList, 0, len(sr.Projects))
	tasks := make(map[string][]provider.Task)
	defaultID := ""

	for _, proj := range sr.Projects {
		if proj.IsDeleted {
			continue
		}
		color, err := colorFromIndex(proj.Color)
		if err != nil {
			return fmt.Errorf("todoist import: project %s: %w", proj.ID, err)
		}
		isDefault := proj.Name == defaultListName
		if isDefault {
			defaultID = proj.ID
		}
		lists = append(lists, provider.TaskList{
			ID:        proj.ID,
			Name:      proj.Name,
			Color:     color,
			Removable: !isDefault,
		})
		tasks[proj.ID] = nil
	}

	for _, it := range sr.Items {
		if it.IsDeleted {
			continue
		}
		if _, ok := tasks[it.ProjectID]; !ok {
			// Item of a project we did not import (archived etc.)
			continue
		}
		due, err := parseTime(it.DueDateUTC)
		if err != nil {
			return fmt.Errorf("todoist import: item %s: %w", it.ID, err)
		}
		tasks[it.ProjectID] = append(tasks[it.ProjectID], provider.Task{
			ID:          it.ID,
			Title:       it.Content,
			Description: it.Description,
			Complete:    it.Checked,
			Priority:    it.Priority,
			DueDate:     due,
			ListID:      it.ProjectID,
		})
	}

	p.lists = lists
	p.tasks = tasks
	p.defaultListID = defaultID
	return nil
}

// TaskLists returns the mirrored lists in remote order.
func (p *Provider) TaskLists() []provider.TaskList {
	out := make([]provider.TaskList, len(p.lists))
	copy(out, p.lists)
	return out
}

// DefaultTaskList returns the inbox-equivalent list.
func (p *Provider) DefaultTaskList() (provider.TaskList, error) {
	if p.defaultListID == "" {
		return provider.TaskList{}, provider.ErrNoDefaultList
	}
	list, _ := p.findList(p.defaultListID)
	return *list, nil
}

// Tasks returns the mirrored tasks of one list.
func (p *Provider) Tasks(listID string) []provider.Task {
	src := p.tasks[listID]
	out := make([]provider.Task, len(src))
	copy(out, src)
	return out
}

// CreateTask pushes the task to the remote. A task that already carries a
// server id is treated as an update.
func (p *Provider) CreateTask(ctx context.Context, task *provider.Task) error {
	return p.saveTask(ctx, task)
}

// UpdateTask pushes changed fields of an existing task.
func (p *Provider) UpdateTask(ctx context.Context, task *provider.Task) error {
	return p.saveTask(ctx, task)
}

func (p *Provider) saveTask(ctx context.Context, task *provider.Task) error {
	if task.ID == "" {
		return p.pushNewTask(ctx, task)
	}
	return p.pushTaskUpdate(ctx, task)
}

func (p *Provider) pushNewTask(ctx context.Context, task *provider.Task) error {
	listID := task.ListID
	if listID == "" {
		listID = p.defaultListID
		if listID == "" {
			return provider.ErrNoDefaultList
		}
	} else if _, err := p.findList(listID); err != nil {
		return err
	}

	const tempID = "new-item"
	p.api.queue("item_add", tempID, map[string]interface{}{
		"content":      task.Title,
		"description":  task.Description,
		"project_id":   listID,
		"priority":     task.Priority,
		"checked":      task.Complete,
		"due_date_utc": formatTime(task.DueDate),
	})

	mapping, err := p.api.commit(ctx)
	if err != nil {
		return err
	}
	realID, ok := mapping[tempID]
	if !ok || realID == "" {
		return fmt.Errorf("todoist: create did not return a server id")
	}

	task.ID = realID
	task.ListID = listID
	p.tasks[listID] = append(p.tasks[listID], *task)
	return nil
}

func (p *Provider) pushTaskUpdate(ctx context.Context, task *provider.Task) error {
	mirror, listID, err := p.findTask(task.ID)
	if err != nil {
		return err
	}
	if task.ListID != "" && task.ListID != listID {
		return provider.ErrReparentNotSupported
	}

	p.api.queue("item_update", "", map[string]interface{}{
		"id":           task.ID,
		"content":      task.Title,
		"description":  task.Description,
		"priority":     task.Priority,
		"due_date_utc": formatTime(task.DueDate),
	})
	if task.Complete != mirror.Complete {
		cmd := "item_uncomplete"
		if task.Complete {
			cmd = "item_complete"
		}
		p.api.queue(cmd, "", map[string]interface{}{"id": task.ID})
	}

	if _, err := p.api.commit(ctx); err != nil {
		return err
	}

	task.ListID = listID
	*mirror = *task
	return nil
}

// RemoveTask deletes the task remotely and, only after the commit succeeds,
// drops it from the mirror.
func (p *Provider) RemoveTask(ctx context.Context, task *provider.Task) error {
	_, listID, err := p.findTask(task.ID)
	if err != nil {
		return err
	}

	p.api.queue("item_delete", "", map[string]interface{}{"id": task.ID})
	if _, err := p.api.commit(ctx); err != nil {
		return err
	}

	kept := p.tasks[listID][:0]
	for _, t := range p.tasks[listID] {
		if t.ID != task.ID {
			kept = append(kept, t)
		}
	}
	p.tasks[listID] = kept
	return nil
}

// CreateTaskList creates a project remotely and adopts its server id. The
// list color is normalized to the nearest palette entry (exact match or
// index 0).
func (p *Provider) CreateTaskList(ctx context.Context, list *provider.TaskList) error {
	colorIndex := colorToIndex(list.Color)

	const tempID = "new-project"
	p.api.queue("project_add", tempID, map[string]interface{}{
		"name":  list.Name,
		"color": colorIndex,
	})

	mapping, err := p.api.commit(ctx)
	if err != nil {
		return err
	}
	realID, ok := mapping[tempID]
	if !ok || realID == "" {
		return fmt.Errorf("todoist: create did not return a server id")
	}

	list.ID = realID
	list.Color, _ = colorFromIndex(colorIndex)
	list.Removable = true
	p.lists = append(p.lists, *list)
	p.tasks[realID] = nil
	return nil
}

// UpdateTaskList pushes name and color changes for an existing project.
func (p *Provider) UpdateTaskList(ctx context.Context, list *provider.TaskList) error {
	mirror, err := p.findList(list.ID)
	if err != nil {
		return err
	}

	colorIndex := colorToIndex(list.Color)
	p.api.queue("project_update", "", map[string]interface{}{
		"id":    list.ID,
		"name":  list.Name,
		"color": colorIndex,
	})

	if _, err := p.api.commit(ctx); err != nil {
		return err
	}

	list.Color, _ = colorFromIndex(colorIndex)
	list.Removable = mirror.Removable
	*mirror = *list
	return nil
}

// RemoveTaskList deletes a project remotely, then drops the list and its
// tasks from the mirror. The default list is not removable.
func (p *Provider) RemoveTaskList(ctx context.Context, list *provider.TaskList) error {
	mirror, err := p.findList(list.ID)
	if err != nil {
		return err
	}
	if !mirror.Removable {
		return provider.ErrListNotRemovable
	}

	p.api.queue("project_delete", "", map[string]interface{}{"id": list.ID})
	if _, err := p.api.commit(ctx); err != nil {
		return err
	}

	kept := p.lists[:0]
	for _, l := range p.lists {
		if l.ID != list.ID {
			kept = append(kept, l)
		}
	}
	p.lists = kept
	delete(p.tasks, list.ID)
	return nil
}

func (p *Provider) findList(id string) (*provider.TaskList, error) {
	for i := range p.lists {
		if p.lists[i].ID == id {
			return &p.lists[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", provider.ErrListNotFound, id)
}

func (p *Provider) findTask(id string) (*provider.Task, string, error) {
	if id == "" {
		return nil, "", provider.ErrTaskNotFound
	}
	for listID, tasks := range p.tasks {
		for i := range tasks {
			if tasks[i].ID == id {
				return &tasks[i], listID, nil
			}
		}
	}
	return nil, "", fmt.Errorf("%w: %s", provider.ErrTaskNotFound, id)
}

// Verify interface compliance at compile time
var _ provider.TaskProvider = (*Provider)(nil)

// init registers the todoist service kind with the provider factory.
func init() {
	provider.Register(provider.ServiceInfo{
		Kind:        provider.ServiceTodoist,
		DisplayName: "Todoist",
		IconName:    "goa-accounts-todoist",
	}, func(info provider.AccountInfo, opts ...provider.Option) (provider.TaskProvider, error) {
		return New(info, opts...)
	})
}
