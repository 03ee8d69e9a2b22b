// Package migration renders an assembled dataset as an idempotent SQL
// migration and writes it to the migrations directory.
package migration

import (
	"fmt"
	"strings"
	"time"

	"github.com/johndauphine/demo-import/internal/dataset"
	"github.com/johndauphine/demo-import/internal/target"
	"github.com/johndauphine/demo-import/internal/tenant"
)

// Defaults for absent source fields.
const (
	DefaultProjectName = "Demo Project"
	DefaultMessageType = "user"
	DefaultRunStatus   = "completed"
)

// Owner holds the display values of the synthetic user and account.
type Owner struct {
	Email       string
	UserName    string
	AccountName string
	AccountSlug string
}

// DefaultOwner is used when no owner values are configured.
var DefaultOwner = Owner{
	Email:       "demo@buffo.ai",
	UserName:    "Demo User",
	AccountName: "Demo Account",
	AccountSlug: "demo-account",
}

func (o Owner) withDefaults() Owner {
	if o.Email == "" {
		o.Email = DefaultOwner.Email
	}
	if o.UserName == "" {
		o.UserName = DefaultOwner.UserName
	}
	if o.AccountName == "" {
		o.AccountName = DefaultOwner.AccountName
	}
	if o.AccountSlug == "" {
		o.AccountSlug = DefaultOwner.AccountSlug
	}
	return o
}

// column pairs a column name with its rendered literal.
type column struct {
	name  string
	value string
}

// Render produces the complete statement batch: a header, the three
// bootstrap statements for id, then projects, threads, messages and agent
// runs in dataset order. Every insert is a no-op on a key conflict.
func Render(ds *dataset.Dataset, id tenant.Identity, owner Owner, now time.Time) string {
	owner = owner.withDefaults()

	var b strings.Builder
	writeHeader(&b, now)

	b.WriteString("\n-- Create demo user (if not exists)\n")
	b.WriteString(userStatement(id, owner))
	b.WriteString("\n\n-- Create demo account\n")
	b.WriteString(accountStatement(id, owner))
	b.WriteString("\n\n-- Add demo user to demo account\n")
	b.WriteString(accountUserStatement(id))
	b.WriteString("\n")

	if len(ds.ProjectIDs) > 0 {
		b.WriteString("\n-- Insert demo projects\n")
		for _, pid := range ds.ProjectIDs {
			b.WriteString(projectStatement(ds.Projects[pid], id))
			b.WriteString("\n")
		}
	}

	if len(ds.ThreadIDs) > 0 {
		b.WriteString("\n-- Insert demo threads\n")
		for _, tid := range ds.ThreadIDs {
			b.WriteString(threadStatement(ds.Threads[tid], id))
			b.WriteString("\n")
		}
	}

	if n := ds.Counts().Messages; n > 0 {
		b.WriteString("\n-- Insert demo messages\n")
		for _, tid := range ds.ThreadIDs {
			for _, m := range ds.Messages[tid] {
				b.WriteString(messageStatement(m))
				b.WriteString("\n")
			}
		}
	}

	if n := ds.Counts().AgentRuns; n > 0 {
		b.WriteString("\n-- Insert demo agent runs\n")
		for _, tid := range ds.ThreadIDs {
			for _, r := range ds.AgentRuns[tid] {
				b.WriteString(agentRunStatement(r))
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}

func writeHeader(b *strings.Builder, now time.Time) {
	fmt.Fprintf(b, `-- Demo Data Migration
-- Generated on %s
-- Imports demo threads, messages, projects, and agent runs

-- This migration creates:
-- 1. A demo user account
-- 2. A demo basejump account
-- 3. All demo projects, threads, messages, and agent runs
`, now.Format(time.RFC3339))
}

func userStatement(id tenant.Identity, owner Owner) string {
	return insert(target.QualifiedName("auth", "users"), []column{
		{"id", target.Literal(id.UserID.String())},
		{"email", target.Literal(owner.Email)},
		{"email_confirmed_at", target.Literal(target.Now)},
		{"created_at", target.Literal(target.Now)},
		{"updated_at", target.Literal(target.Now)},
		{"raw_app_meta_data", target.Literal(map[string]any{
			"provider":  "email",
			"providers": []string{"email"},
		})},
		{"raw_user_meta_data", target.Literal(map[string]any{"name": owner.UserName})},
		{"is_super_admin", target.Literal(false)},
		{"role", target.Literal("authenticated")},
	}, "id")
}

func accountStatement(id tenant.Identity, owner Owner) string {
	userID := target.Literal(id.UserID.String())
	return insert(target.QualifiedName("basejump", "accounts"), []column{
		{"id", target.Literal(id.AccountID.String())},
		{"primary_owner_user_id", userID},
		{"name", target.Literal(owner.AccountName)},
		{"slug", target.Literal(owner.AccountSlug)},
		{"personal_account", target.Literal(false)},
		{"created_at", target.Literal(target.Now)},
		{"updated_at", target.Literal(target.Now)},
		{"created_by", userID},
		{"updated_by", userID},
		{"private_metadata", target.QuoteText("{}")},
		{"public_metadata", target.QuoteText("{}")},
	}, "id")
}

func accountUserStatement(id tenant.Identity) string {
	return insert(target.QualifiedName("basejump", "account_user"), []column{
		{"user_id", target.Literal(id.UserID.String())},
		{"account_id", target.Literal(id.AccountID.String())},
		{"account_role", target.Literal("owner")},
	}, "user_id", "account_id")
}

func projectStatement(p *dataset.Project, id tenant.Identity) string {
	return insert("projects", []column{
		{"project_id", target.Literal(p.ProjectID)},
		{"name", text(p.Name, DefaultProjectName)},
		{"description", target.Literal(p.Description)},
		{"account_id", target.Literal(id.AccountID.String())},
		{"sandbox", target.JSONText(p.Sandbox, "{}")},
		{"is_public", target.Literal(true)},
		{"created_at", timestamp(p.CreatedAt)},
		{"updated_at", timestamp(p.UpdatedAt)},
	}, "project_id")
}

func threadStatement(t *dataset.Thread, id tenant.Identity) string {
	return insert("threads", []column{
		{"thread_id", target.Literal(t.ThreadID)},
		{"account_id", target.Literal(id.AccountID.String())},
		{"project_id", target.Literal(t.ProjectID)},
		{"is_public", target.Literal(true)},
		{"created_at", timestamp(t.CreatedAt)},
		{"updated_at", timestamp(t.UpdatedAt)},
	}, "thread_id")
}

func messageStatement(m *dataset.Message) string {
	isLLM := true
	if m.IsLLMMessage != nil {
		isLLM = *m.IsLLMMessage
	}
	return insert("messages", []column{
		{"message_id", target.Literal(m.MessageID)},
		{"thread_id", target.Literal(m.ThreadID)},
		{"type", text(m.Type, DefaultMessageType)},
		{"is_llm_message", target.Literal(isLLM)},
		{"content", target.JSONText(m.Content, "{}")},
		{"metadata", target.JSONText(m.Metadata, "{}")},
		{"created_at", timestamp(m.CreatedAt)},
		{"updated_at", timestamp(m.UpdatedAt)},
	}, "message_id")
}

func agentRunStatement(r *dataset.AgentRun) string {
	return insert("agent_runs", []column{
		{"id", target.Literal(r.ID)},
		{"thread_id", target.Literal(r.ThreadID)},
		{"status", text(r.Status, DefaultRunStatus)},
		{"started_at", timestamp(r.StartedAt)},
		{"completed_at", target.Literal(r.CompletedAt)},
		{"responses", target.JSONText(r.Responses, "[]")},
		{"error", target.Literal(r.Error)},
		{"created_at", timestamp(r.CreatedAt)},
		{"updated_at", timestamp(r.UpdatedAt)},
	}, "id")
}

// insert renders one multi-line INSERT ... ON CONFLICT (keys) DO NOTHING.
func insert(table string, cols []column, conflict ...string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (\n")
	for i, c := range cols {
		b.WriteString("    ")
		b.WriteString(target.QuoteIdent(c.name))
		if i < len(cols)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(") VALUES (\n")
	for i, c := range cols {
		b.WriteString("    ")
		b.WriteString(c.value)
		if i < len(cols)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(") ON CONFLICT (")
	b.WriteString(target.QuoteIdents(conflict))
	b.WriteString(") DO NOTHING;")
	return b.String()
}

func text(p *string, def string) string {
	if p == nil {
		return target.Literal(def)
	}
	return target.Literal(*p)
}

func timestamp(p *string) string {
	if p == nil {
		return target.Literal(target.Now)
	}
	return target.Literal(*p)
}
