package store

import "github.com/redis/go-redis/v9"

// Server-side Lua scripts. Local locks do not span instances, so every
// read-modify-write on shared structures runs inside the store itself.

// leaseScript implements the compare-and-set lease:
// extend when we already hold it, claim when unheld, fail otherwise.
//
//	KEYS[1] lease key
//	ARGV[1] holder instance id
//	ARGV[2] ttl in milliseconds
var leaseScript = redis.NewScript(`
local holder = redis.call("GET", KEYS[1])
if holder == ARGV[1] then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
  return 1
elseif not holder then
  redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
  return 1
else
  return 0
end
`)

// appendWagerScript appends one wager to the player's serialized list inside
// the round's wager hash. The list is decoded, extended, and re-encoded in
// one atomic step so concurrent placements never overwrite each other.
//
//	KEYS[1] wager hash key
//	ARGV[1] player id (hash field)
//	ARGV[2] wager JSON
//	ARGV[3] hash ttl in milliseconds
var appendWagerScript = redis.NewScript(`
local raw = redis.call("HGET", KEYS[1], ARGV[1])
local entries
if raw then
  entries = cjson.decode(raw)
else
  entries = {}
end
table.insert(entries, cjson.decode(ARGV[2]))
redis.call("HSET", KEYS[1], ARGV[1], cjson.encode(entries))
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return #entries
`)

// removeWagerScript removes the wager with the given transaction id from the
// player's list. Deletes the hash field when the list empties. Returns the
// removed wager's JSON, or false when no wager matched.
//
//	KEYS[1] wager hash key
//	ARGV[1] player id (hash field)
//	ARGV[2] transaction id
var removeWagerScript = redis.NewScript(`
local raw = redis.call("HGET", KEYS[1], ARGV[1])
if not raw then
  return false
end
local entries = cjson.decode(raw)
local removed = nil
local kept = {}
for _, e in ipairs(entries) do
  if removed == nil and e.transactionId == ARGV[2] then
    removed = e
  else
    table.insert(kept, e)
  end
end
if removed == nil then
  return false
end
if #kept == 0 then
  redis.call("HDEL", KEYS[1], ARGV[1])
else
  redis.call("HSET", KEYS[1], ARGV[1], cjson.encode(kept))
end
return cjson.encode(removed)
`)
