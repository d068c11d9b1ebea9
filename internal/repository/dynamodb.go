package repository

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/retailcore/user-management/internal/domain"
	"github.com/retailcore/user-management/internal/domain/oauth"
)

var _ Repository = (*DynamoDBRepository)(nil)

// Single-table key scheme. Users are keyed by the hashed identifier on both
// PK and SK; protocol artifacts use a typed prefix with a METADATA sort key.
const (
	clientKeyPrefix = "CLIENT#"
	codeKeyPrefix   = "CODE#"
	tokenKeyPrefix  = "TOKEN#"
	metadataSortKey = "METADATA"
)

// DynamoDBRepository implements Repository over a single DynamoDB table.
type DynamoDBRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

func NewDynamoDBRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *DynamoDBRepository {
	return &DynamoDBRepository{client: client, tableName: tableName, logger: logger}
}

type userRecord struct {
	PK           string    `dynamodbav:"PK"`
	SK           string    `dynamodbav:"SK"`
	UserID       string    `dynamodbav:"UserId"`
	EmailAddress string    `dynamodbav:"EmailAddress"`
	FirstName    string    `dynamodbav:"FirstName"`
	LastName     string    `dynamodbav:"LastName"`
	PasswordHash string    `dynamodbav:"PasswordHash"`
	UserType     string    `dynamodbav:"UserType"`
	CreatedAt    time.Time `dynamodbav:"CreatedAt"`
	LastActive   time.Time `dynamodbav:"LastActive"`
	OrderCount   int       `dynamodbav:"OrderCount"`
}

type clientRecord struct {
	PK                      string    `dynamodbav:"PK"`
	SK                      string    `dynamodbav:"SK"`
	ClientID                string    `dynamodbav:"ClientId"`
	ClientSecret            string    `dynamodbav:"ClientSecret"`
	ClientName              string    `dynamodbav:"ClientName"`
	RedirectURIs            []string  `dynamodbav:"RedirectUris"`
	GrantTypes              []string  `dynamodbav:"GrantTypes"`
	ResponseTypes           []string  `dynamodbav:"ResponseTypes"`
	Scopes                  []string  `dynamodbav:"Scopes"`
	TokenEndpointAuthMethod string    `dynamodbav:"TokenEndpointAuthMethod"`
	CreatedAt               time.Time `dynamodbav:"CreatedAt"`
	UpdatedAt               time.Time `dynamodbav:"UpdatedAt"`
	IsActive                bool      `dynamodbav:"IsActive"`
}

type codeRecord struct {
	PK                  string    `dynamodbav:"PK"`
	SK                  string    `dynamodbav:"SK"`
	Code                string    `dynamodbav:"Code"`
	ClientID            string    `dynamodbav:"ClientId"`
	UserID              string    `dynamodbav:"UserId"`
	RedirectURI         string    `dynamodbav:"RedirectUri"`
	Scopes              []string  `dynamodbav:"Scopes"`
	CodeChallenge       string    `dynamodbav:"CodeChallenge"`
	CodeChallengeMethod string    `dynamodbav:"CodeChallengeMethod"`
	ExpiresAt           time.Time `dynamodbav:"ExpiresAt"`
	CreatedAt           time.Time `dynamodbav:"CreatedAt"`
	IsUsed              bool      `dynamodbav:"IsUsed"`
	TTL                 int64     `dynamodbav:"TTL"`
}

type tokenRecord struct {
	PK           string    `dynamodbav:"PK"`
	SK           string    `dynamodbav:"SK"`
	AccessToken  string    `dynamodbav:"AccessToken"`
	TokenType    string    `dynamodbav:"TokenType"`
	ExpiresIn    int64     `dynamodbav:"ExpiresIn"`
	RefreshToken string    `dynamodbav:"RefreshToken"`
	Scope        string    `dynamodbav:"Scope"`
	ClientID     string    `dynamodbav:"ClientId"`
	UserID       string    `dynamodbav:"UserId"`
	CreatedAt    time.Time `dynamodbav:"CreatedAt"`
	ExpiresAt    time.Time `dynamodbav:"ExpiresAt"`
	IsRevoked    bool      `dynamodbav:"IsRevoked"`
	TTL          int64     `dynamodbav:"TTL"`
}

func (r *DynamoDBRepository) putItem(ctx context.Context, record any, what string) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return domain.NewInternal(fmt.Sprintf("marshal %s", what), err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	}); err != nil {
		r.logger.Error("dynamodb put failed", zap.String("item", what), zap.Error(err))
		return domain.NewInternal(fmt.Sprintf("store %s", what), err)
	}
	return nil
}

func (r *DynamoDBRepository) getItem(ctx context.Context, pk, sk string, out any) error {
	res, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return domain.NewInternal("dynamodb get item", err)
	}
	if res.Item == nil {
		return domain.ErrNotFound
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return domain.NewInternal("unmarshal item", err)
	}
	return nil
}

func (r *DynamoDBRepository) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var record userRecord
	if err := r.getItem(ctx, userID, userID, &record); err != nil {
		return domain.User{}, err
	}
	tier, err := domain.ParseTier(record.UserType)
	if err != nil {
		return domain.User{}, domain.NewInternal("corrupt user record", err)
	}
	return domain.User{
		UserID:       record.UserID,
		EmailAddress: record.EmailAddress,
		FirstName:    record.FirstName,
		LastName:     record.LastName,
		PasswordHash: record.PasswordHash,
		Tier:         tier,
		CreatedAt:    record.CreatedAt,
		LastActive:   record.LastActive,
		OrderCount:   record.OrderCount,
	}, nil
}

func (r *DynamoDBRepository) UpdateUser(ctx context.Context, user domain.User) error {
	return r.putItem(ctx, userRecord{
		PK:           user.UserID,
		SK:           user.UserID,
		UserID:       user.UserID,
		EmailAddress: user.EmailAddress,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		PasswordHash: user.PasswordHash,
		UserType:     string(user.Tier),
		CreatedAt:    user.CreatedAt,
		LastActive:   user.LastActive,
		OrderCount:   user.OrderCount,
	}, "user")
}

func (r *DynamoDBRepository) CreateClient(ctx context.Context, client oauth.Client) error {
	grants := make([]string, 0, len(client.GrantTypes))
	for _, g := range client.GrantTypes {
		grants = append(grants, string(g))
	}
	responses := make([]string, 0, len(client.ResponseTypes))
	for _, rt := range client.ResponseTypes {
		responses = append(responses, string(rt))
	}
	return r.putItem(ctx, clientRecord{
		PK:                      clientKeyPrefix + client.ClientID,
		SK:                      metadataSortKey,
		ClientID:                client.ClientID,
		ClientSecret:            client.ClientSecret,
		ClientName:              client.ClientName,
		RedirectURIs:            client.RedirectURIs,
		GrantTypes:              grants,
		ResponseTypes:           responses,
		Scopes:                  client.Scopes,
		TokenEndpointAuthMethod: string(client.TokenEndpointAuthMethod),
		CreatedAt:               client.CreatedAt,
		UpdatedAt:               client.UpdatedAt,
		IsActive:                client.IsActive,
	}, "oauth client")
}

func (r *DynamoDBRepository) GetClient(ctx context.Context, clientID string) (oauth.Client, error) {
	var record clientRecord
	if err := r.getItem(ctx, clientKeyPrefix+clientID, metadataSortKey, &record); err != nil {
		return oauth.Client{}, err
	}
	return clientFromRecord(record), nil
}

func clientFromRecord(record clientRecord) oauth.Client {
	grants := make([]oauth.GrantType, 0, len(record.GrantTypes))
	for _, g := range record.GrantTypes {
		grants = append(grants, oauth.GrantType(g))
	}
	responses := make([]oauth.ResponseType, 0, len(record.ResponseTypes))
	for _, rt := range record.ResponseTypes {
		responses = append(responses, oauth.ResponseType(rt))
	}
	return oauth.Client{
		ClientID:                record.ClientID,
		ClientSecret:            record.ClientSecret,
		ClientName:              record.ClientName,
		RedirectURIs:            record.RedirectURIs,
		GrantTypes:              grants,
		ResponseTypes:           responses,
		Scopes:                  record.Scopes,
		TokenEndpointAuthMethod: oauth.TokenEndpointAuthMethod(record.TokenEndpointAuthMethod),
		CreatedAt:               record.CreatedAt,
		UpdatedAt:               record.UpdatedAt,
		IsActive:                record.IsActive,
	}
}

func (r *DynamoDBRepository) UpdateClient(ctx context.Context, client oauth.Client) error {
	return r.CreateClient(ctx, client)
}

func (r *DynamoDBRepository) DeleteClient(ctx context.Context, clientID string) error {
	if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: clientKeyPrefix + clientID},
			"SK": &types.AttributeValueMemberS{Value: metadataSortKey},
		},
	}); err != nil {
		return domain.NewInternal("delete oauth client", err)
	}
	return nil
}

func (r *DynamoDBRepository) ListClients(ctx context.Context, page, limit int) ([]oauth.Client, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	clients := make([]oauth.Client, 0, limit)
	var startKey map[string]types.AttributeValue
	for {
		res, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(r.tableName),
			FilterExpression: aws.String("begins_with(PK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":prefix": &types.AttributeValueMemberS{Value: clientKeyPrefix},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, domain.NewInternal("list oauth clients", err)
		}
		for _, item := range res.Items {
			var record clientRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				continue
			}
			clients = append(clients, clientFromRecord(record))
		}
		if res.LastEvaluatedKey == nil || len(clients) >= page*limit {
			break
		}
		startKey = res.LastEvaluatedKey
	}

	start := (page - 1) * limit
	if start >= len(clients) {
		return []oauth.Client{}, nil
	}
	end := start + limit
	if end > len(clients) {
		end = len(clients)
	}
	return clients[start:end], nil
}

func (r *DynamoDBRepository) ValidateClientSecret(ctx context.Context, clientID, clientSecret string) (bool, error) {
	client, err := r.GetClient(ctx, clientID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !client.IsActive {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(client.ClientSecret), []byte(clientSecret)) == 1, nil
}

func (r *DynamoDBRepository) StoreCode(ctx context.Context, code oauth.AuthorizationCode) error {
	return r.putItem(ctx, codeRecord{
		PK:                  codeKeyPrefix + code.Code,
		SK:                  metadataSortKey,
		Code:                code.Code,
		ClientID:            code.ClientID,
		UserID:              code.UserID,
		RedirectURI:         code.RedirectURI,
		Scopes:              code.Scopes,
		CodeChallenge:       code.CodeChallenge,
		CodeChallengeMethod: code.CodeChallengeMethod,
		ExpiresAt:           code.ExpiresAt,
		CreatedAt:           code.CreatedAt,
		IsUsed:              code.IsUsed,
		TTL:                 code.ExpiresAt.Unix(),
	}, "authorization code")
}

func (r *DynamoDBRepository) GetCode(ctx context.Context, code string) (oauth.AuthorizationCode, error) {
	var record codeRecord
	if err := r.getItem(ctx, codeKeyPrefix+code, metadataSortKey, &record); err != nil {
		return oauth.AuthorizationCode{}, err
	}
	return oauth.AuthorizationCode{
		Code:                record.Code,
		ClientID:            record.ClientID,
		UserID:              record.UserID,
		RedirectURI:         record.RedirectURI,
		Scopes:              record.Scopes,
		CodeChallenge:       record.CodeChallenge,
		CodeChallengeMethod: record.CodeChallengeMethod,
		ExpiresAt:           record.ExpiresAt,
		CreatedAt:           record.CreatedAt,
		IsUsed:              record.IsUsed,
	}, nil
}

// ConsumeCode marks the code used through a conditional update, so only one
// of two concurrent exchanges can succeed.
func (r *DynamoDBRepository) ConsumeCode(ctx context.Context, code string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: codeKeyPrefix + code},
			"SK": &types.AttributeValueMemberS{Value: metadataSortKey},
		},
		UpdateExpression:    aws.String("SET IsUsed = :used"),
		ConditionExpression: aws.String("attribute_exists(PK) AND IsUsed = :unused"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":used":   &types.AttributeValueMemberBOOL{Value: true},
			":unused": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return ErrCodeConsumed
		}
		return domain.NewInternal("consume authorization code", err)
	}
	return nil
}

func (r *DynamoDBRepository) StoreToken(ctx context.Context, token oauth.Token) error {
	return r.putItem(ctx, tokenRecord{
		PK:           tokenKeyPrefix + token.AccessToken,
		SK:           metadataSortKey,
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		ExpiresIn:    token.ExpiresIn,
		RefreshToken: token.RefreshToken,
		Scope:        token.Scope,
		ClientID:     token.ClientID,
		UserID:       token.UserID,
		CreatedAt:    token.CreatedAt,
		ExpiresAt:    token.ExpiresAt,
		IsRevoked:    token.IsRevoked,
		TTL:          token.ExpiresAt.Unix(),
	}, "oauth token")
}

func (r *DynamoDBRepository) GetToken(ctx context.Context, accessToken string) (oauth.Token, error) {
	var record tokenRecord
	if err := r.getItem(ctx, tokenKeyPrefix+accessToken, metadataSortKey, &record); err != nil {
		return oauth.Token{}, err
	}
	return tokenFromRecord(record), nil
}

func tokenFromRecord(record tokenRecord) oauth.Token {
	return oauth.Token{
		AccessToken:  record.AccessToken,
		TokenType:    record.TokenType,
		ExpiresIn:    record.ExpiresIn,
		RefreshToken: record.RefreshToken,
		Scope:        record.Scope,
		ClientID:     record.ClientID,
		UserID:       record.UserID,
		CreatedAt:    record.CreatedAt,
		ExpiresAt:    record.ExpiresAt,
		IsRevoked:    record.IsRevoked,
	}
}

func (r *DynamoDBRepository) GetTokenByRefresh(ctx context.Context, refreshToken string) (oauth.Token, error) {
	var startKey map[string]types.AttributeValue
	for {
		res, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(r.tableName),
			FilterExpression: aws.String("begins_with(PK, :prefix) AND RefreshToken = :refresh"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":prefix":  &types.AttributeValueMemberS{Value: tokenKeyPrefix},
				":refresh": &types.AttributeValueMemberS{Value: refreshToken},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return oauth.Token{}, domain.NewInternal("get token by refresh", err)
		}
		for _, item := range res.Items {
			var record tokenRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				continue
			}
			return tokenFromRecord(record), nil
		}
		if res.LastEvaluatedKey == nil {
			return oauth.Token{}, domain.ErrNotFound
		}
		startKey = res.LastEvaluatedKey
	}
}

func (r *DynamoDBRepository) RevokeToken(ctx context.Context, accessToken string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: tokenKeyPrefix + accessToken},
			"SK": &types.AttributeValueMemberS{Value: metadataSortKey},
		},
		UpdateExpression:    aws.String("SET IsRevoked = :revoked"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":revoked": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return domain.ErrNotFound
		}
		return domain.NewInternal("revoke oauth token", err)
	}
	return nil
}

func (r *DynamoDBRepository) RevokeAllTokensForClient(ctx context.Context, clientID string) error {
	var startKey map[string]types.AttributeValue
	for {
		res, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(r.tableName),
			FilterExpression: aws.String("begins_with(PK, :prefix) AND ClientId = :client"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":prefix": &types.AttributeValueMemberS{Value: tokenKeyPrefix},
				":client": &types.AttributeValueMemberS{Value: clientID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return domain.NewInternal("scan client tokens", err)
		}
		for _, item := range res.Items {
			var record tokenRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				continue
			}
			if err := r.RevokeToken(ctx, record.AccessToken); err != nil && !errors.Is(err, domain.ErrNotFound) {
				r.logger.Warn("revoke client token failed",
					zap.String("client_id", clientID),
					zap.Error(err),
				)
			}
		}
		if res.LastEvaluatedKey == nil {
			return nil
		}
		startKey = res.LastEvaluatedKey
	}
}
