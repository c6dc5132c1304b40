package counter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/causekit/causekit/app/repository"
	"github.com/causekit/causekit/internal/pkg/cache"
)

const (
	deliverySuccessKey = "webhook:counters:success"
	deliveryFailureKey = "webhook:counters:failure"
)

// AddDeliverySuccess increments the pending success counter for an endpoint in Redis
func AddDeliverySuccess(endpointID uint) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(endpointID), 10)
	return cache.GetClient().HIncrBy(ctx, deliverySuccessKey, field, 1).Err()
}

// AddDeliveryFailure increments the pending failure counter for an endpoint in Redis
func AddDeliveryFailure(endpointID uint) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(endpointID), 10)
	return cache.GetClient().HIncrBy(ctx, deliveryFailureKey, field, 1).Err()
}

// FlushDeliveryCounters drains both counter hashes and applies the batched
// increments to the webhook_endpoints table in one UPDATE.
func FlushDeliveryCounters() error {
	successes, err := drainHash(deliverySuccessKey)
	if err != nil {
		return err
	}
	failures, err := drainHash(deliveryFailureKey)
	if err != nil {
		return err
	}
	if len(successes) == 0 && len(failures) == 0 {
		return nil
	}

	counts := make(map[uint][2]int64, len(successes)+len(failures))
	for id, n := range successes {
		c := counts[id]
		c[0] += n
		counts[id] = c
	}
	for id, n := range failures {
		c := counts[id]
		c[1] += n
		counts[id] = c
	}

	return repository.GetGlobalFactory().GetWebhookEndpointRepository().AddDeliveryCounts(counts)
}

// drainHash atomically moves a counter hash to a temporary key and reads it
// out. RENAME keeps in-flight increments from being lost during the drain.
func drainHash(redisKey string) (map[uint]int64, error) {
	ctx := context.Background()
	rdb := cache.GetClient()

	tmpKey := fmt.Sprintf("%s:tmp:%d", redisKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", redisKey, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") || err.Error() == "redis: nil" {
			return nil, nil
		}
		return nil, err
	}
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(data))
	for k, v := range data {
		id, perr := strconv.ParseUint(k, 10, 64)
		if perr != nil {
			continue
		}
		inc, ierr := strconv.ParseInt(v, 10, 64)
		if ierr != nil || inc == 0 {
			continue
		}
		counts[uint(id)] = inc
	}
	return counts, nil
}
