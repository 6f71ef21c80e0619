package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/plately/plately/pkg/logger"
	"github.com/plately/plately/pkg/storage"
)

const defaultExpansionRetryInterval = 100 * time.Millisecond

// Audience is the resolved social neighborhood of a viewer: the users directly
// connected to them and the users exactly one hop beyond those.
type Audience struct {
	ViewerID     string
	Direct       map[string]struct{}
	SecondDegree map[string]struct{}
}

// IsEmpty reports whether the viewer has no connections at all.
func (a *Audience) IsEmpty() bool {
	return len(a.Direct) == 0 && len(a.SecondDegree) == 0
}

// Members returns every user in the audience, direct and second degree.
// Order is unspecified.
func (a *Audience) Members() []string {
	members := make([]string, 0, len(a.Direct)+len(a.SecondDegree))
	for id := range a.Direct {
		members = append(members, id)
	}
	for id := range a.SecondDegree {
		members = append(members, id)
	}
	return members
}

// AudienceResolver computes viewer audiences from the connection store.
type AudienceResolver struct {
	connections   storage.ConnectionStore
	logger        logger.Logger
	retryInterval time.Duration
}

// NewAudienceResolver returns an AudienceResolver reading from connections.
func NewAudienceResolver(connections storage.ConnectionStore, l logger.Logger) *AudienceResolver {
	return &AudienceResolver{
		connections:   connections,
		logger:        l,
		retryInterval: defaultExpansionRetryInterval,
	}
}

// Resolve computes the audience of viewerID.
//
// The direct set comes from a single accepted-connections read; a failure
// there is fatal. When the direct set is empty both sets are empty and no
// further queries are issued. The second-degree expansion issues its two reads
// concurrently and is retried once on failure; if it still fails the audience
// falls back to the direct set only. The fallback can only narrow what the
// viewer sees, never widen it.
func (r *AudienceResolver) Resolve(ctx context.Context, viewerID string) (*Audience, error) {
	direct, err := r.connections.ListAcceptedByUser(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("resolve direct connections: %w", err)
	}

	audience := &Audience{
		ViewerID:     viewerID,
		Direct:       make(map[string]struct{}, len(direct)),
		SecondDegree: map[string]struct{}{},
	}
	for _, c := range direct {
		audience.Direct[c.OtherParty(viewerID)] = struct{}{}
	}
	if len(audience.Direct) == 0 {
		return audience, nil
	}

	directIDs := make([]string, 0, len(audience.Direct))
	for id := range audience.Direct {
		directIDs = append(directIDs, id)
	}

	expand := func() error {
		var fromRequesters, fromAddressees []*storage.ConnectionRecord

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			fromRequesters, err = r.connections.ListAcceptedByRequesters(gctx, directIDs)
			return err
		})
		g.Go(func() error {
			var err error
			fromAddressees, err = r.connections.ListAcceptedByAddressees(gctx, directIDs)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}

		second := map[string]struct{}{}
		for _, conns := range [][]*storage.ConnectionRecord{fromRequesters, fromAddressees} {
			for _, c := range conns {
				for _, party := range []string{c.RequesterID, c.AddresseeID} {
					if party == viewerID {
						continue
					}
					if _, ok := audience.Direct[party]; ok {
						continue
					}
					second[party] = struct{}{}
				}
			}
		}
		audience.SecondDegree = second
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.retryInterval), 1),
		ctx,
	)
	if err := backoff.Retry(expand, policy); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn(
			"second-degree expansion failed, serving direct connections only",
			zap.String("viewer_id", viewerID),
			zap.Error(err),
		)
		audience.SecondDegree = map[string]struct{}{}
	}

	return audience, nil
}
