package db

import "github.com/chainsafe/bridge-reconciler/pkg/db/dao"

func toTransferRecordDao(rec *TransferRecord) *dao.TransferRecordDao {
	return &dao.TransferRecordDao{
		ID:                    rec.ID,
		FromChain:             rec.FromChain,
		ToChain:               rec.ToChain,
		Bridge:                rec.Bridge,
		Nonce:                 rec.Nonce,
		MessageNonce:          rec.MessageNonce,
		SendToken:             rec.SendToken,
		RecvToken:             rec.RecvToken,
		SendTokenAddr:         rec.SendTokenAddr,
		RecvTokenAddr:         rec.RecvTokenAddr,
		SendAmount:            rec.SendAmount,
		RecvAmount:            rec.RecvAmount,
		Fee:                   rec.Fee,
		FeeToken:              rec.FeeToken,
		Sender:                rec.Sender,
		Recipient:             rec.Recipient,
		Relayer:               rec.Relayer,
		Provider:              rec.Provider,
		Result:                string(rec.Result),
		Reason:                rec.Reason,
		RequestTxHash:         rec.RequestTxHash,
		ResponseTxHash:        rec.ResponseTxHash,
		EndTxHash:             rec.EndTxHash,
		StartTime:             rec.StartTime,
		EndTime:               rec.EndTime,
		NeedWithdrawLiquidity: rec.NeedWithdrawLiquidity,
		LastRequestWithdraw:   rec.LastRequestWithdraw,
	}
}

func toTransferRecord(model *dao.TransferRecordDao) *TransferRecord {
	return &TransferRecord{
		ID:                    model.ID,
		FromChain:             model.FromChain,
		ToChain:               model.ToChain,
		Bridge:                model.Bridge,
		Nonce:                 model.Nonce,
		MessageNonce:          model.MessageNonce,
		SendToken:             model.SendToken,
		RecvToken:             model.RecvToken,
		SendTokenAddr:         model.SendTokenAddr,
		RecvTokenAddr:         model.RecvTokenAddr,
		SendAmount:            model.SendAmount,
		RecvAmount:            model.RecvAmount,
		Fee:                   model.Fee,
		FeeToken:              model.FeeToken,
		Sender:                model.Sender,
		Recipient:             model.Recipient,
		Relayer:               model.Relayer,
		Provider:              model.Provider,
		Result:                RecordStatus(model.Result),
		Reason:                model.Reason,
		RequestTxHash:         model.RequestTxHash,
		ResponseTxHash:        model.ResponseTxHash,
		EndTxHash:             model.EndTxHash,
		StartTime:             model.StartTime,
		EndTime:               model.EndTime,
		NeedWithdrawLiquidity: model.NeedWithdrawLiquidity,
		LastRequestWithdraw:   model.LastRequestWithdraw,
	}
}

func toRelayProviderInfoDao(info *RelayProviderInfo) *dao.RelayProviderInfoDao {
	return &dao.RelayProviderInfoDao{
		ID:               info.ID,
		RouteID:          info.RouteID,
		FromChain:        info.FromChain,
		ToChain:          info.ToChain,
		Bridge:           info.Bridge,
		Provider:         info.Provider,
		SendToken:        info.SendToken,
		BaseFee:          info.BaseFee,
		LiquidityFeeRate: info.LiquidityFeeRate,
		ProtocolFee:      info.ProtocolFee,
		Margin:           info.Margin,
		SlashCount:       info.SlashCount,
		WithdrawNonce:    info.WithdrawNonce,
		Paused:           info.Paused,
		TransferLimit:    info.TransferLimit,
		Cost:             info.Cost,
		Profit:           info.Profit,
		Nonce:            info.Nonce,
		TargetNonce:      info.TargetNonce,
		LastTransferID:   info.LastTransferID,
	}
}

func toRelayProviderInfo(model *dao.RelayProviderInfoDao) *RelayProviderInfo {
	return &RelayProviderInfo{
		ID:               model.ID,
		RouteID:          model.RouteID,
		FromChain:        model.FromChain,
		ToChain:          model.ToChain,
		Bridge:           model.Bridge,
		Provider:         model.Provider,
		SendToken:        model.SendToken,
		BaseFee:          model.BaseFee,
		LiquidityFeeRate: model.LiquidityFeeRate,
		ProtocolFee:      model.ProtocolFee,
		Margin:           model.Margin,
		SlashCount:       model.SlashCount,
		WithdrawNonce:    model.WithdrawNonce,
		Paused:           model.Paused,
		TransferLimit:    model.TransferLimit,
		Cost:             model.Cost,
		Profit:           model.Profit,
		Nonce:            model.Nonce,
		TargetNonce:      model.TargetNonce,
		LastTransferID:   model.LastTransferID,
	}
}
