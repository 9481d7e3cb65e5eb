package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"token_auth/internal/models"
	"token_auth/internal/storage"

	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyPrefix = "ledger:token:"
	userKeyPrefix  = "ledger:user:"
	tokenSeqKey    = "ledger:token_seq"
)

// Ledger stores issued tokens in Redis:
//
//	ledger:token:<token>       hash {id, user_id, kind, expired, revoked, created_at}
//	ledger:user:<id>:tokens    set of token strings
type Ledger struct {
	client    *redis.Client
	retention time.Duration
	now       func() time.Time
}

// saveScript refuses to overwrite an existing token record.
var saveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
local id = redis.call('INCR', KEYS[3])
redis.call('HSET', KEYS[1],
	'id', id,
	'user_id', ARGV[1],
	'kind', ARGV[2],
	'expired', '0',
	'revoked', '0',
	'created_at', ARGV[3])
redis.call('SADD', KEYS[2], ARGV[4])
local ttl = tonumber(ARGV[5])
if ttl > 0 then
	redis.call('EXPIRE', KEYS[1], ttl)
	redis.call('EXPIRE', KEYS[2], ttl)
end
return id
`)

// revokeScript flips both flags on every still-valid token of a user in one step
// and drops set members whose record has already aged out.
var revokeScript = redis.NewScript(`
local members = redis.call('SMEMBERS', KEYS[1])
local revoked = 0
for _, tok in ipairs(members) do
	local key = ARGV[1] .. tok
	if redis.call('EXISTS', key) == 0 then
		redis.call('SREM', KEYS[1], tok)
	else
		local flags = redis.call('HMGET', key, 'expired', 'revoked')
		if flags[1] == '0' and flags[2] == '0' then
			redis.call('HSET', key, 'expired', '1', 'revoked', '1')
			revoked = revoked + 1
		end
	end
end
return revoked
`)

func New(ctx context.Context, addr, pass string, db int, retention time.Duration) (*Ledger, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewWithClient(client, retention), nil
}

func NewWithClient(client *redis.Client, retention time.Duration) *Ledger {
	return &Ledger{
		client:    client,
		retention: retention,
		now:       time.Now,
	}
}

func tokenKey(token string) string {
	return tokenKeyPrefix + token
}

func userKey(userID int64) string {
	return userKeyPrefix + strconv.FormatInt(userID, 10) + ":tokens"
}

// * SaveToken сохраняет новый валидный токен пользователя
func (l *Ledger) SaveToken(ctx context.Context, userID int64, token string) error {
	const op = "storage.redis.SaveToken"

	id, err := saveScript.Run(ctx, l.client,
		[]string{tokenKey(token), userKey(userID), tokenSeqKey},
		userID,
		string(models.TokenKindBearer),
		l.now().UTC().Unix(),
		token,
		int64(l.retention/time.Second),
	).Int64()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if id == 0 {
		return storage.ErrTokenExists
	}

	return nil
}

// * ValidTokensByUser: expired = 0 AND revoked = 0
func (l *Ledger) ValidTokensByUser(ctx context.Context, userID int64) ([]models.Token, error) {
	const op = "storage.redis.ValidTokensByUser"

	members, err := l.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(members) == 0 {
		return nil, nil
	}

	pipe := l.client.Pipeline()

	cmds := make([]*redis.MapStringStringCmd, len(members))
	for i, tok := range members {
		cmds[i] = pipe.HGetAll(ctx, tokenKey(tok))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var out []models.Token

	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}

		t, err := decodeToken(members[i], fields)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if t.IsValid() {
			out = append(out, t)
		}
	}

	return out, nil
}

// * RevokeAllUserTokens выполняется одним Lua скриптом, поэтому атомарно
func (l *Ledger) RevokeAllUserTokens(ctx context.Context, userID int64) error {
	const op = "storage.redis.RevokeAllUserTokens"

	if err := revokeScript.Run(ctx, l.client, []string{userKey(userID)}, tokenKeyPrefix).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (l *Ledger) Token(ctx context.Context, token string) (models.Token, error) {
	const op = "storage.redis.Token"

	fields, err := l.client.HGetAll(ctx, tokenKey(token)).Result()
	if err != nil {
		return models.Token{}, fmt.Errorf("%s: %w", op, err)
	}

	if len(fields) == 0 {
		return models.Token{}, storage.ErrTokenNotFound
	}

	t, err := decodeToken(token, fields)
	if err != nil {
		return models.Token{}, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

func decodeToken(token string, fields map[string]string) (models.Token, error) {
	id, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return models.Token{}, errors.New("corrupted token record: id")
	}

	userID, err := strconv.ParseInt(fields["user_id"], 10, 64)
	if err != nil {
		return models.Token{}, errors.New("corrupted token record: user_id")
	}

	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return models.Token{}, errors.New("corrupted token record: created_at")
	}

	return models.Token{
		ID:        id,
		Token:     token,
		UserID:    userID,
		Kind:      models.TokenKind(fields["kind"]),
		Expired:   fields["expired"] == "1",
		Revoked:   fields["revoked"] == "1",
		CreatedAt: time.Unix(createdAt, 0).UTC(),
	}, nil
}

// * Close закрывает соединение с Redis.
func (l *Ledger) Close() {
	_ = l.client.Close()
}
