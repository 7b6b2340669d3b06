package store

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"

	"ConfigService/pkg/homescreen"
)

// ErrConflict is returned when a record changed between read and write.
var ErrConflict = errors.New("configuration was modified concurrently")

const etcdPrefix = "/homescreen/configs/"

// Etcd keeps one key per configuration under /homescreen/configs/{user}/{id}.
// Writes are guarded by compare-and-swap transactions.
type Etcd struct {
	cli *clientv3.Client
	now clock
}

func OpenEtcd(endpoints []string, dialTimeout time.Duration) (*Etcd, error) {
	cli, err := clientv3.New(clientv3.Config{Endpoints: endpoints, DialTimeout: dialTimeout})
	if err != nil {
		return nil, errors.Wrap(err, "connect to etcd")
	}
	return &Etcd{cli: cli}, nil
}

type etcdRecord struct {
	ID            string               `json:"id"`
	SchemaVersion int                  `json:"schema_version"`
	CreatedAt     homescreen.Timestamp `json:"created_at"`
	UpdatedAt     homescreen.Timestamp `json:"updated_at"`
	CreatedBy     string               `json:"created_by"`
	UpdatedBy     string               `json:"updated_by"`
	Data          homescreen.Config    `json:"data"`
}

func (r etcdRecord) configuration() homescreen.Configuration {
	return homescreen.Configuration{
		ID:            r.ID,
		SchemaVersion: r.SchemaVersion,
		UpdatedAt:     r.UpdatedAt,
		Data:          r.Data,
	}
}

func userPrefix(userID string) string {
	return etcdPrefix + url.PathEscape(userID) + "/"
}

func configKey(userID, id string) string {
	return userPrefix(userID) + url.PathEscape(id)
}

func (e *Etcd) List(ctx context.Context, userID string) ([]homescreen.Configuration, error) {
	resp, err := e.cli.Get(ctx, userPrefix(userID), clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Wrap(err, "list configurations")
	}
	out := make([]homescreen.Configuration, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var rec etcdRecord
		if err := json.Unmarshal(kv.Value, &rec); err != nil {
			return nil, errors.Wrapf(err, "decode %s", kv.Key)
		}
		out = append(out, rec.configuration())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt.Time) })
	return out, nil
}

func (e *Etcd) get(ctx context.Context, id, userID string) (etcdRecord, int64, error) {
	k := configKey(userID, id)
	resp, err := e.cli.Get(ctx, k)
	if err != nil {
		return etcdRecord{}, 0, errors.Wrap(err, "get configuration")
	}
	if len(resp.Kvs) == 0 {
		return etcdRecord{}, 0, ErrNotFound
	}
	var rec etcdRecord
	if err := json.Unmarshal(resp.Kvs[0].Value, &rec); err != nil {
		return etcdRecord{}, 0, errors.Wrapf(err, "decode %s", k)
	}
	return rec, resp.Kvs[0].ModRevision, nil
}

func (e *Etcd) Get(ctx context.Context, id, userID string) (homescreen.Configuration, error) {
	rec, _, err := e.get(ctx, id, userID)
	if err != nil {
		return homescreen.Configuration{}, err
	}
	return rec.configuration(), nil
}

// WithClock replaces the clock used for created/updated timestamps.
func (e *Etcd) WithClock(now func() time.Time) *Etcd {
	e.now = now
	return e
}

func (e *Etcd) Create(ctx context.Context, userID string, data homescreen.Config) (homescreen.Configuration, error) {
	now := e.now.now()
	rec := etcdRecord{
		ID:            uuid.NewString(),
		SchemaVersion: homescreen.SchemaVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
		CreatedBy:     userID,
		UpdatedBy:     userID,
		Data:          data,
	}
	if err := e.insert(ctx, rec); err != nil {
		return homescreen.Configuration{}, err
	}
	return rec.configuration(), nil
}

// insert writes rec only if its key does not exist yet.
func (e *Etcd) insert(ctx context.Context, rec etcdRecord) error {
	k := configKey(rec.CreatedBy, rec.ID)
	return e.commit(ctx, clientv3.Compare(clientv3.Version(k), "=", 0), k, rec, "create configuration")
}

func (e *Etcd) Update(ctx context.Context, id, userID string, data homescreen.Config) (homescreen.Configuration, error) {
	rec, rev, err := e.get(ctx, id, userID)
	if err != nil {
		return homescreen.Configuration{}, err
	}
	rec.Data = data
	rec.UpdatedAt = e.now.now()
	rec.UpdatedBy = userID
	if err := e.swap(ctx, rec, rev); err != nil {
		return homescreen.Configuration{}, err
	}
	return rec.configuration(), nil
}

// swap replaces the stored record if it is still at revision rev.
func (e *Etcd) swap(ctx context.Context, rec etcdRecord, rev int64) error {
	k := configKey(rec.CreatedBy, rec.ID)
	return e.commit(ctx, clientv3.Compare(clientv3.ModRevision(k), "=", rev), k, rec, "update configuration")
}

func (e *Etcd) commit(ctx context.Context, guard clientv3.Cmp, k string, rec etcdRecord, what string) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode configuration")
	}
	resp, err := e.cli.Txn(ctx).If(guard).Then(clientv3.OpPut(k, string(b))).Commit()
	if err != nil {
		return errors.Wrap(err, what)
	}
	if !resp.Succeeded {
		return ErrConflict
	}
	return nil
}

func (e *Etcd) Delete(ctx context.Context, id, userID string) error {
	resp, err := e.cli.Delete(ctx, configKey(userID, id))
	if err != nil {
		return errors.Wrap(err, "delete configuration")
	}
	if resp.Deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func (e *Etcd) Close() error { return e.cli.Close() }
