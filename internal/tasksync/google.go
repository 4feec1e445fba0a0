package tasksync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gtasks "google.golang.org/api/tasks/v1"

	"github.com/flowtask/taskd/internal/models"
)

const SourceGoogle = "GOOGLE"

// GoogleTasks pushes changes to Google Tasks with a per-user offline
// refresh token.
type GoogleTasks struct {
	oauth  *oauth2.Config
	tokens map[string]string

	// clientOptions builds the API client options of a user.
	clientOptions func(ctx context.Context, userID string) ([]option.ClientOption, error)

	mu       sync.Mutex
	services map[string]*gtasks.Service
}

func NewGoogleTasks(clientID, clientSecret string, refreshTokens map[string]string) *GoogleTasks {
	g := &GoogleTasks{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gtasks.TasksScope},
		},
		tokens:   refreshTokens,
		services: map[string]*gtasks.Service{},
	}
	g.clientOptions = g.tokenOptions
	return g
}

func (g *GoogleTasks) Source() string { return SourceGoogle }

func (g *GoogleTasks) tokenOptions(_ context.Context, userID string) ([]option.ClientOption, error) {
	refresh, ok := g.tokens[userID]
	if !ok || refresh == "" {
		return nil, fmt.Errorf("no google refresh token for user %s", userID)
	}
	// token refreshes outlive the request that triggered them
	ts := g.oauth.TokenSource(context.Background(), &oauth2.Token{RefreshToken: refresh})
	return []option.ClientOption{option.WithTokenSource(ts)}, nil
}

func (g *GoogleTasks) service(ctx context.Context, userID string) (*gtasks.Service, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if svc, ok := g.services[userID]; ok {
		return svc, nil
	}
	opts, err := g.clientOptions(ctx, userID)
	if err != nil {
		return nil, err
	}
	svc, err := gtasks.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create tasks service: %w", err)
	}
	g.services[userID] = svc
	return svc, nil
}

func (g *GoogleTasks) Push(ctx context.Context, m models.TaskListMapping, change models.TaskChange, task *models.Task) (*models.ExternalRef, error) {
	svc, err := g.service(ctx, m.UserID)
	if err != nil {
		return nil, err
	}

	if change.ChangeType == models.ChangeDelete {
		extID, _ := change.ChangeData["externalTaskId"].(string)
		listID, _ := change.ChangeData["externalListId"].(string)
		if listID == "" {
			listID = m.ExternalListID
		}
		if extID == "" {
			return nil, nil
		}
		err := svc.Tasks.Delete(listID, extID).Context(ctx).Do()
		if err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("delete google task %s: %w", extID, err)
		}
		return nil, nil
	}

	body := toGoogleTask(task)
	listID := m.ExternalListID
	var out *gtasks.Task
	if task.ExternalTaskID != nil && task.Source != nil && *task.Source == SourceGoogle {
		if task.ExternalListID != nil && *task.ExternalListID != "" {
			listID = *task.ExternalListID
		}
		out, err = svc.Tasks.Patch(listID, *task.ExternalTaskID, body).Context(ctx).Do()
	} else {
		out, err = svc.Tasks.Insert(listID, body).Context(ctx).Do()
	}
	if err != nil {
		return nil, fmt.Errorf("push google task for %s: %w", task.ID, err)
	}
	return &models.ExternalRef{
		ExternalTaskID: out.Id,
		Source:         SourceGoogle,
		ExternalListID: listID,
	}, nil
}

func toGoogleTask(task *models.Task) *gtasks.Task {
	t := &gtasks.Task{
		Title:  task.Title,
		Status: "needsAction",
	}
	if task.Description != nil {
		t.Notes = *task.Description
	} else {
		t.NullFields = append(t.NullFields, "Notes")
	}
	if task.DueDate != nil {
		t.Due = task.DueDate.UTC().Format(time.RFC3339)
	} else {
		t.NullFields = append(t.NullFields, "Due")
	}
	if task.Status == models.StatusCompleted {
		t.Status = "completed"
		if task.CompletedAt != nil {
			done := task.CompletedAt.UTC().Format(time.RFC3339)
			t.Completed = &done
		}
	}
	return t
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone)
}
