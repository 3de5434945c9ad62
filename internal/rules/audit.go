package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AuditEntry struct {
	ID        string    `bson:"_id" json:"id"`
	RuleName  string    `bson:"rule_name" json:"ruleName"`
	Action    string    `bson:"action" json:"action"`
	OldValue  string    `bson:"old_value,omitempty" json:"oldValue,omitempty"`
	NewValue  string    `bson:"new_value,omitempty" json:"newValue,omitempty"`
	ChangedBy string    `bson:"changed_by,omitempty" json:"changedBy,omitempty"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

const (
	AuditActionSet    = "set"
	AuditActionDelete = "delete"
)

// AuditLog records rule changes made through the administrative API.
type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry) error
	List(ctx context.Context, ruleName string, limit int64) ([]AuditEntry, error)
}

type MongoAuditLog struct {
	collection *mongo.Collection
}

func NewAuditLog(db *mongo.Database) *MongoAuditLog {
	return &MongoAuditLog{
		collection: db.Collection("rule_audit_logs"),
	}
}

func (a *MongoAuditLog) Record(ctx context.Context, entry AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if _, err := a.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

func (a *MongoAuditLog) List(ctx context.Context, ruleName string, limit int64) ([]AuditEntry, error) {
	filter := bson.M{}
	if ruleName != "" {
		filter["rule_name"] = ruleName
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cursor, err := a.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []AuditEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode audit entries: %w", err)
	}

	return entries, nil
}
