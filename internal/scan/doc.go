// Package scan produces the operation plan the coordinator consumes: a
// scanner walks the project tree collecting file metadata, and a categorizer
// partitions the files into keep/remove/consolidate/archive sets using fixed
// rule tables.
package scan
