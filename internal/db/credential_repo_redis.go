package db

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/TeamHubHQ/teamhub-gateway/internal/gwerrors"
	"github.com/TeamHubHQ/teamhub-gateway/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	credentialsPrefix     string = "credentials"
	loggedFlagPrefix      string = "islogged"
	credentialExpiryIndex string = "credentialExpiry"
	// SessionEventsChannel carries session change events across processes.
	SessionEventsChannel string = "teamhub:session-events"
)

const credentialExpiresAtLeeway time.Duration = 10 * time.Second

func (RedisAdapter) credentialsKey(sessionID string) string {
	return credentialsPrefix + ":" + sessionID
}

func (RedisAdapter) loggedFlagKey(sessionID string) string {
	return loggedFlagPrefix + ":" + sessionID
}

// GetCredentials reads the credential pair of a session from Redis, decrypting
// the token values if necessary.
func (r RedisAdapter) GetCredentials(ctx context.Context, sessionID string) (models.CredentialPair, error) {
	output := models.CredentialPair{}
	raw, err := r.rdb.HGetAll(ctx, r.credentialsKey(sessionID)).Result()
	if err != nil {
		return models.CredentialPair{}, err
	}
	err = r.deserializeToStruct(raw, &output)
	if err != nil {
		if err == gwerrors.ErrMissingDBResource {
			err = gwerrors.ErrCredentialsNotFound
		}
		return models.CredentialPair{}, err
	}
	decPair, err := output.Decrypt(r.encryptor)
	if err != nil {
		return models.CredentialPair{}, err
	}
	if !decPair.Complete() {
		return models.CredentialPair{}, gwerrors.ErrPartialCredentials
	}
	return decPair, nil
}

// SetCredentials writes a credential pair to Redis as a single hash. The pair
// is rejected when either token is missing so that storage never holds an
// access credential without its refresh credential or vice versa.
func (r RedisAdapter) SetCredentials(ctx context.Context, creds models.CredentialPair) error {
	if !creds.Complete() {
		return gwerrors.ErrPartialCredentials
	}
	encPair, err := creds.Encrypt(r.encryptor)
	if err != nil {
		return err
	}
	slog.Debug("CREDENTIAL STORE", "message", "saving credentials", "credentials", creds)
	key := r.credentialsKey(creds.ID)
	err = r.rdb.HSet(ctx, key, r.serializeStruct(encPair)...).Err()
	if err != nil {
		return err
	}
	if creds.ExpiresAt.IsZero() {
		err = r.rdb.Persist(ctx, key).Err()
		if err != nil {
			return err
		}
		return r.rdb.ZRem(ctx, credentialExpiryIndex, creds.ID).Err()
	}
	// The hash outlives the access token so the refresh credential stays
	// usable until the proactive refresher or a 401 retry picks it up.
	err = r.rdb.ExpireAt(ctx, key, creds.ExpiresAt.Add(credentialExpiresAtLeeway+24*time.Hour)).Err()
	if err != nil {
		return err
	}
	return r.rdb.ZAdd(
		ctx,
		credentialExpiryIndex,
		redis.Z{Score: float64(creds.ExpiresAt.Unix()), Member: creds.ID},
	).Err()
}

// RemoveCredentials deletes the whole pair at once.
func (r RedisAdapter) RemoveCredentials(ctx context.Context, sessionID string) error {
	err := r.rdb.Del(ctx, r.credentialsKey(sessionID)).Err()
	if err != nil {
		return err
	}
	return r.rdb.ZRem(ctx, credentialExpiryIndex, sessionID).Err()
}

// GetExpiringCredentialIDs lists the sessions whose access token expires
// between from and until.
func (r RedisAdapter) GetExpiringCredentialIDs(
	ctx context.Context,
	from time.Time,
	until time.Time,
) ([]string, error) {
	members, err := r.rdb.ZRangeArgsWithScores(ctx, redis.ZRangeArgs{
		Key:     credentialExpiryIndex,
		Start:   float64(from.Unix()),
		Stop:    float64(until.Unix()),
		ByScore: true,
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for _, member := range members {
		id, ok := member.Member.(string)
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

type loggedFlag struct {
	Value string
}

// SetLoggedIn writes the logged-in flag of a session and publishes the change
// so that other shells observing the store can react.
func (r RedisAdapter) SetLoggedIn(ctx context.Context, sessionID string, loggedIn bool) error {
	flag := loggedFlag{Value: "false"}
	if loggedIn {
		flag.Value = "true"
	}
	err := r.rdb.HSet(ctx, r.loggedFlagKey(sessionID), r.serializeStruct(flag)...).Err()
	if err != nil {
		return err
	}
	event, err := json.Marshal(models.SessionEvent{SessionID: sessionID, LoggedIn: loggedIn})
	if err != nil {
		return err
	}
	err = r.rdb.Publish(ctx, SessionEventsChannel, string(event)).Err()
	if err != nil {
		// Publication is best effort, the flag itself is already stored.
		slog.Error("CREDENTIAL STORE", "message", "publishing session event failed", "error", err)
	}
	return nil
}

func (r RedisAdapter) LoggedIn(ctx context.Context, sessionID string) (bool, error) {
	raw, err := r.rdb.HGetAll(ctx, r.loggedFlagKey(sessionID)).Result()
	if err != nil {
		return false, err
	}
	flag := loggedFlag{}
	err = r.deserializeToStruct(raw, &flag)
	if err != nil {
		if err == gwerrors.ErrMissingDBResource {
			return false, nil
		}
		return false, err
	}
	return flag.Value == "true", nil
}
