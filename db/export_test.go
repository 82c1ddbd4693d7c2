package db

var RetryTx = retryTx
