package redis

const (
	// appendExampleScript appends an example and records its movement
	appendExampleScript = `
local list_key = KEYS[1]      -- {prefix}:examples:{movement}
local movements_key = KEYS[2] -- {prefix}:movements

local movement = ARGV[1]
local payload = ARGV[2]

local length = redis.call('RPUSH', list_key, payload)
redis.call('SADD', movements_key, movement)

return length
`

	// clearExamplesScript removes a movement's examples and returns how many
	// there were
	clearExamplesScript = `
local list_key = KEYS[1]      -- {prefix}:examples:{movement}
local movements_key = KEYS[2] -- {prefix}:movements

local movement = ARGV[1]

local count = redis.call('LLEN', list_key)
redis.call('DEL', list_key)
redis.call('SREM', movements_key, movement)

return count
`
)
