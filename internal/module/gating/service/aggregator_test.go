package service_test

import (
	"testing"

	"github.com/curia-network/curia-cg-sub000/internal/database/schema"
	"github.com/curia-network/curia-cg-sub000/internal/module/gating/service"
	"github.com/stretchr/testify/assert"
)

func TestAggregateResultsAny(t *testing.T) {
	assert.True(t, service.AggregateResults(schema.FulfillmentAny, []bool{true, false, false}))
	assert.True(t, service.AggregateResults(schema.FulfillmentAny, []bool{true, true}))
	assert.False(t, service.AggregateResults(schema.FulfillmentAny, []bool{false, false}))
	assert.False(t, service.AggregateResults(schema.FulfillmentAny, nil))
}

func TestAggregateResultsAll(t *testing.T) {
	assert.True(t, service.AggregateResults(schema.FulfillmentAll, []bool{true, true, true}))
	assert.False(t, service.AggregateResults(schema.FulfillmentAll, []bool{true, false, true}))
	assert.False(t, service.AggregateResults(schema.FulfillmentAll, []bool{false}))
	assert.True(t, service.AggregateResults(schema.FulfillmentAll, nil))
}
