package redis

const keyPrefix = "digest:"

// jobKey returns the hash key for a job record: digest:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// jobIDsKey is the set tracking all job IDs for enumeration.
const jobIDsKey = keyPrefix + "job_ids"

// invokeKey returns the list key for a worker target: digest:invoke:{target}
func invokeKey(target string) string { return keyPrefix + "invoke:" + target }
