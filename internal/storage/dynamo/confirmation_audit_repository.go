package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// DefaultTable — имя таблицы журнала по умолчанию.
const DefaultTable = "orderdesk_confirmation_attempts"

type attemptItem struct {
	OrderID     string `dynamodbav:"order_id"`
	AttemptID   string `dynamodbav:"attempt_id"`
	RequestBody string `dynamodbav:"request_body"`
	StatusCode  int    `dynamodbav:"status_code"`
	Outcome     string `dynamodbav:"outcome"`
	Error       string `dynamodbav:"error,omitempty"`
	StartedAt   string `dynamodbav:"started_at"`
	DurationMs  int64  `dynamodbav:"duration_ms"`
}

// ConfirmationAuditRepository пишет попытки в таблицу:
//   - PK: order_id (string)
//   - SK: attempt_id (string, UUIDv7, сортируется по времени)
type ConfirmationAuditRepository struct {
	api   API
	table string
}

// NewConfirmationAuditRepository создаёт журнал попыток поверх DynamoDB.
func NewConfirmationAuditRepository(api API, table string) *ConfirmationAuditRepository {
	if table == "" {
		table = DefaultTable
	}
	return &ConfirmationAuditRepository{api: api, table: table}
}

// Record сохраняет попытку. Повторная запись с тем же ID отклоняется.
func (r *ConfirmationAuditRepository) Record(ctx context.Context, attempt domain.ConfirmationAttempt) error {
	av, err := attributevalue.MarshalMap(toAttemptItem(attempt))
	if err != nil {
		return fmt.Errorf("marshal confirmation attempt: %w", err)
	}

	_, err = r.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(#sk)"),
		ExpressionAttributeNames: map[string]string{
			"#sk": "attempt_id",
		},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return fmt.Errorf("confirmation attempt %s already recorded", attempt.ID)
		}
		return fmt.Errorf("put confirmation attempt: %w", err)
	}
	return nil
}

// ListByOrder возвращает попытки заказа в хронологическом порядке.
func (r *ConfirmationAuditRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.ConfirmationAttempt, error) {
	paginator := dynamodb.NewQueryPaginator(r.api, &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		KeyConditionExpression: aws.String("#pk = :pk"),
		ExpressionAttributeNames: map[string]string{
			"#pk": "order_id",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: orderID},
		},
		ScanIndexForward: aws.Bool(true),
	})

	attempts := make([]domain.ConfirmationAttempt, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query confirmation attempts: %w", err)
		}

		var items []attemptItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal confirmation attempts: %w", err)
		}
		for _, it := range items {
			attempts = append(attempts, fromAttemptItem(it))
		}
	}
	return attempts, nil
}

// Ping проверяет, что таблица журнала доступна.
func (r *ConfirmationAuditRepository) Ping(ctx context.Context) error {
	if _, err := r.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.table)}); err != nil {
		return fmt.Errorf("describe table %s: %w", r.table, err)
	}
	return nil
}

// EnsureTable создаёт таблицу, если её нет (локальная разработка).
func (r *ConfirmationAuditRepository) EnsureTable(ctx context.Context) error {
	_, err := r.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("describe table %s: %w", r.table, err)
	}

	_, err = r.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(r.table),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("order_id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("attempt_id"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("order_id"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("attempt_id"), KeyType: types.KeyTypeRange},
		},
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil
		}
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	return nil
}

func toAttemptItem(a domain.ConfirmationAttempt) attemptItem {
	return attemptItem{
		OrderID:     a.OrderID,
		AttemptID:   a.ID,
		RequestBody: a.RequestBody,
		StatusCode:  a.StatusCode,
		Outcome:     string(a.Outcome),
		Error:       a.Error,
		StartedAt:   a.StartedAt.UTC().Format(time.RFC3339Nano),
		DurationMs:  a.DurationMs,
	}
}

func fromAttemptItem(it attemptItem) domain.ConfirmationAttempt {
	startedAt, _ := time.Parse(time.RFC3339Nano, it.StartedAt)
	return domain.ConfirmationAttempt{
		ID:          it.AttemptID,
		OrderID:     it.OrderID,
		RequestBody: it.RequestBody,
		StatusCode:  it.StatusCode,
		Outcome:     domain.ConfirmationOutcome(it.Outcome),
		Error:       it.Error,
		StartedAt:   startedAt,
		DurationMs:  it.DurationMs,
	}
}

var _ domain.ConfirmationAuditRepository = (*ConfirmationAuditRepository)(nil)
