package rediscache

import "github.com/redis/go-redis/v9"

// Projections run as scripts so the index lookup and the record fetch see
// the same state.

// topScoreScript returns every record sharing the maximum score of the index
// in KEYS[1]. KEYS[2] is the records hash.
var topScoreScript = redis.NewScript(`
	local top = redis.call('ZREVRANGE', KEYS[1], 0, 0, 'WITHSCORES')
	if #top == 0 then
		return {}
	end

	local members = redis.call('ZRANGEBYSCORE', KEYS[1], top[2], top[2])
	if #members == 0 then
		return {}
	end
	return redis.call('HMGET', KEYS[2], unpack(members))
`)

// atScoresScript returns every record whose score in KEYS[1] equals one of
// ARGV. KEYS[2] is the records hash.
var atScoresScript = redis.NewScript(`
	local members = {}
	for _, score in ipairs(ARGV) do
		local found = redis.call('ZRANGEBYSCORE', KEYS[1], score, score)
		for _, m in ipairs(found) do
			members[#members + 1] = m
		end
	end

	if #members == 0 then
		return {}
	end
	return redis.call('HMGET', KEYS[2], unpack(members))
`)
