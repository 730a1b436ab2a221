package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/limelightai/limelight/internal/config"
	"github.com/limelightai/limelight/internal/domain"
	"github.com/limelightai/limelight/internal/provider"
	"github.com/limelightai/limelight/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// testEnv bundles a migrated in-memory store with the orchestration
// components under test.
type testEnv struct {
	db       *gorm.DB
	orgs     *repository.OrgRepository
	prompts  *repository.PromptRepository
	jobs     *repository.JobRepository
	tasks    *repository.TaskRepository
	sched    *repository.SchedulerRepository
	gate     *Gate
	quotas   config.QuotasConfig
	registry *provider.Registry
	manager  *Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	gate, err := NewGate(&config.SchedulerConfig{Timezone: "UTC", StartHour: 0})
	if err != nil {
		t.Fatalf("failed to build gate: %v", err)
	}

	env := &testEnv{
		db:      db,
		orgs:    repository.NewOrgRepository(db),
		prompts: repository.NewPromptRepository(db),
		jobs:    repository.NewJobRepository(db),
		tasks:   repository.NewTaskRepository(db),
		sched:   repository.NewSchedulerRepository(db),
		gate:    gate,
		quotas: config.QuotasConfig{
			Free:       config.TierQuota{PromptsPerDay: 10, ProvidersPerPrompt: 2},
			Pro:        config.TierQuota{PromptsPerDay: 50, ProvidersPerPrompt: 3},
			Enterprise: config.TierQuota{PromptsPerDay: 200, ProvidersPerPrompt: 5},
		},
		registry: provider.NewRegistry(),
	}
	env.manager = NewManager(env.orgs, env.prompts, env.jobs, env.tasks, env.gate, &env.quotas, 0)
	return env
}

func (e *testEnv) seedOrg(t *testing.T, id string, tier domain.Tier) {
	t.Helper()
	org := &domain.Organization{ID: id, Name: id, Tier: tier, Active: true}
	if err := e.db.Create(org).Error; err != nil {
		t.Fatalf("failed to seed org: %v", err)
	}
}

func (e *testEnv) seedPrompts(t *testing.T, orgID string, n int) {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < n; i++ {
		p := &domain.Prompt{
			ID:        uuid.New().String(),
			OrgID:     orgID,
			Text:      "What do people think of us?",
			Active:    true,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := e.db.Create(p).Error; err != nil {
			t.Fatalf("failed to seed prompt: %v", err)
		}
	}
}

func (e *testEnv) seedGlobalProviders(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		pc := &domain.ProviderConfig{ID: id, OrgID: "", Enabled: true}
		if err := e.db.Create(pc).Error; err != nil {
			t.Fatalf("failed to seed provider config: %v", id)
		}
	}
}

// fakeExecutor is a scripted TaskExecutor for runner tests.
type fakeExecutor struct {
	id string

	mu      sync.Mutex
	calls   int
	prompts []string

	failAll bool
	delay   time.Duration
}

func (f *fakeExecutor) ProviderID() string { return f.id }

func (f *fakeExecutor) Execute(ctx context.Context, prompt string) (*provider.Result, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failAll {
		return nil, errors.New("provider unavailable")
	}
	return &provider.Result{Content: "ok: " + prompt, TokensIn: 10, TokensOut: 20}, nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
